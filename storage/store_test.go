package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dappstore/native/curation"
)

func testEntry(last byte, balance int64) *curation.Entry {
	entry := &curation.Entry{
		Balance:          big.NewInt(balance),
		Rate:             big.NewInt(999_510),
		Available:        big.NewInt(999_510_000),
		VotesMinted:      big.NewInt(1002),
		VotesCast:        big.NewInt(0),
		EffectiveBalance: big.NewInt(balance),
	}
	entry.Owner[19] = last
	entry.ID[31] = last
	return entry
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "curation.db"))
	entry := testEntry(0x01, 1000)
	require.NoError(t, store.CurationEntryPut(entry))

	loaded, ok, err := store.CurationEntryGet(entry.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Owner, loaded.Owner)
	require.Zero(t, entry.Balance.Cmp(loaded.Balance))
	require.Zero(t, entry.Rate.Cmp(loaded.Rate))
	require.Zero(t, entry.VotesMinted.Cmp(loaded.VotesMinted))
	require.Zero(t, entry.EffectiveBalance.Cmp(loaded.EffectiveBalance))
}

func TestGetMissingEntry(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "curation.db"))
	var id [32]byte
	id[31] = 0x7f
	_, ok, err := store.CurationEntryGet(id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "curation.db"))
	for _, last := range []byte{0x03, 0x01, 0x02} {
		require.NoError(t, store.CurationEntryPut(testEntry(last, int64(last)*1000)))
	}
	// Updating an existing entry must not move it in the listing.
	updated := testEntry(0x03, 9999)
	require.NoError(t, store.CurationEntryPut(updated))

	entries, err := store.CurationEntryList()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, byte(0x03), entries[0].ID[31])
	require.Equal(t, byte(0x01), entries[1].ID[31])
	require.Equal(t, byte(0x02), entries[2].ID[31])
	require.Zero(t, entries[0].Balance.Cmp(big.NewInt(9999)))
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.CurationEntryPut(testEntry(0x01, 1000)))
	require.NoError(t, store.CurationEntryPut(testEntry(0x02, 2000)))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	entries, err := reopened.CurationEntryList()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, byte(0x01), entries[0].ID[31])
}
