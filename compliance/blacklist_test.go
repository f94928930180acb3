package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty_HasNoEntries(t *testing.T) {
	s := Empty()
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.TotalBlocked)
	assert.False(t, snap.LoadedAtStartup)
}

func TestLoad_NoPathReturnsEmpty(t *testing.T) {
	s := Load("")
	assert.False(t, s.Snapshot().LoadedAtStartup)
}

func TestLoad_MissingFileDegradesGracefully(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.False(t, s.Snapshot().LoadedAtStartup)
	assert.Equal(t, 0, s.Snapshot().TotalBlocked)
}

func TestLoad_MalformedFileDegradesGracefully(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	s := Load(path)
	assert.False(t, s.Snapshot().LoadedAtStartup)
}

func TestLoad_ValidFilePopulatesBothFamilies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	contents := `[
		{"account_type":"evm","wallet":"0xAAAABBBBCCCCDDDDEEEEFFFF00001111AAAABBBB","reason":"OFAC SDN"},
		{"account_type":"solana","wallet":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","reason":"manual review"},
		{"account_type":"unknown","wallet":"x","reason":"skip me"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	s := Load(path)
	snap := s.Snapshot()
	assert.True(t, snap.LoadedAtStartup)
	assert.Equal(t, 1, snap.EVMCount)
	assert.Equal(t, 1, snap.SolanaCount)
	assert.Equal(t, 2, snap.TotalBlocked)
}

func TestCheck_EVMIsCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	contents := `[{"account_type":"evm","wallet":"0xAAAABBBBCCCCDDDDEEEEFFFF00001111AAAABBBB","reason":"OFAC SDN"}]`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	s := Load(path)

	reason, blocked := s.Check("evm", "0xaaaabbbbccccddddeeeeffff00001111aaaabbbb")
	assert.True(t, blocked)
	assert.Equal(t, "OFAC SDN", reason)

	_, blocked = s.Check("evm", "0x0000000000000000000000000000000000dead")
	assert.False(t, blocked)
}

func TestCheck_SolanaIsCaseSensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	contents := `[{"account_type":"solana","wallet":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","reason":"manual review"}]`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	s := Load(path)

	_, blocked := s.Check("solana", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	assert.True(t, blocked)

	_, blocked = s.Check("solana", "epjfwdd5aufqssqem2qn1xzybapc8g4wegGkZwyTDt1v")
	assert.False(t, blocked)
}

func TestCheck_UnknownFamilyNeverBlocks(t *testing.T) {
	s := Empty()
	_, blocked := s.Check("near", "alice.near")
	assert.False(t, blocked)
}
