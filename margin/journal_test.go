package margin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalLoadEmptyIsNotOK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margin.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	_, ok, err := j.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournalSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margin.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Save(1234.5))

	total, ok, err := j.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1234.5, total)
}

func TestJournalSaveOverwritesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margin.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Save(100))
	require.NoError(t, j.Save(200))

	total, ok, err := j.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200.0, total)
}

func TestBookWithJournalSeedsTotalOnChainFromSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margin.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Save(5000))

	book := New(fixedEquity{equity: 0}).WithJournal(j)
	assert.Equal(t, 5000.0, book.TotalOnChain())
}

func TestBookSyncPersistsToJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margin.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	book := New(fixedEquity{equity: 777}).WithJournal(j)
	require.NoError(t, book.Sync(context.Background()))

	total, ok, err := j.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 777.0, total)
}
