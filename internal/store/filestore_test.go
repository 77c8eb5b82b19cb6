package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcache/internal/models"
	"podcache/internal/structures"
	"podcache/internal/testutil"
)

func storeConfig(dir string) *structures.Config {
	return &structures.Config{
		Storage: structures.StorageConfig{Dir: dir},
	}
}

func newTestStore(t *testing.T, dir string) EpisodeStoreInterface {
	t.Helper()
	st, err := NewFileStore(storeConfig(dir), &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, err)
	return st
}

func episode(id int64, size int) *models.StoredEpisode {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return &models.StoredEpisode{
		ID:           id,
		Title:        "episode",
		AudioData:    bytes.Repeat([]byte{byte(id)}, size),
		DownloadedAt: now,
		LastAccessed: now,
		FileSize:     int64(size),
	}
}

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	ep := episode(42, 1024)
	require.NoError(t, st.Put(ep))

	got, err := st.Get(42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ep.Title, got.Title)
	assert.Equal(t, ep.AudioData, got.AudioData)
	assert.Equal(t, ep.FileSize, got.FileSize)
	assert.True(t, ep.DownloadedAt.Equal(got.DownloadedAt))
}

func TestFileStore_HasAndCount(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	ok, err := st.Has(1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, st.Count())

	require.NoError(t, st.Put(episode(1, 10)))
	ok, err = st.Has(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, st.Count())
}

func TestFileStore_GetAbsentReturnsNil(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	got, err := st.Get(7)
	require.NoError(t, err)
	assert.Nil(t, got)

	meta, err := st.GetMeta(7)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestFileStore_PutOverwritesExisting(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	require.NoError(t, st.Put(episode(5, 100)))
	bigger := episode(5, 200)
	bigger.Title = "replaced"
	require.NoError(t, st.Put(bigger))

	got, err := st.Get(5)
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Title)
	assert.Equal(t, int64(200), got.FileSize)
	assert.Equal(t, 1, st.Count())
}

func TestFileStore_DeleteAbsentIsNoop(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	assert.NoError(t, st.Delete(99))
}

func TestFileStore_DeleteRemovesBlobAndIndexEntry(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Put(episode(3, 50)))
	require.NoError(t, st.Delete(3))

	ok, err := st.Has(3)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "3.audio"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_TouchBumpsOnlyForward(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	ep := episode(4, 10)
	require.NoError(t, st.Put(ep))

	later := ep.LastAccessed.Add(time.Hour)
	require.NoError(t, st.Touch(4, later))
	meta, err := st.GetMeta(4)
	require.NoError(t, err)
	assert.True(t, meta.LastAccessed.Equal(later))

	require.NoError(t, st.Touch(4, ep.LastAccessed)) // older, ignored
	meta, err = st.GetMeta(4)
	require.NoError(t, err)
	assert.True(t, meta.LastAccessed.Equal(later))
}

func TestFileStore_TouchAbsentIsNoop(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	assert.NoError(t, st.Touch(123, time.Now()))
}

func TestFileStore_ListAndUsedBytes(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	require.NoError(t, st.Put(episode(1, 100)))
	require.NoError(t, st.Put(episode(2, 250)))

	metas, err := st.List()
	require.NoError(t, err)
	assert.Len(t, metas, 2)
	assert.Equal(t, int64(350), st.UsedBytes())
}

func TestFileStore_ClearRemovesEverything(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Put(episode(1, 10)))
	require.NoError(t, st.Put(episode(2, 10)))
	require.NoError(t, st.Clear())

	assert.Zero(t, st.Count())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "episodes.idx.zst", e.Name())
	}
}

func TestFileStore_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Put(episode(11, 64)))
	require.NoError(t, st.Close())

	st2 := newTestStore(t, dir)
	require.NoError(t, st2.RestoreIndex())

	got, err := st2.Get(11)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(64), got.FileSize)
	assert.Len(t, got.AudioData, 64)
}

func TestFileStore_RestoreDropsEntriesWithoutBlob(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Put(episode(20, 32)))
	require.NoError(t, st.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, "20.audio")))

	st2 := newTestStore(t, dir)
	require.NoError(t, st2.RestoreIndex())

	ok, err := st2.Has(20)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_RestoreRemovesOrphanBlobs(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Close())
	orphan := filepath.Join(dir, "77.audio")
	require.NoError(t, os.WriteFile(orphan, []byte("stray"), 0644))

	st2 := newTestStore(t, dir)
	require.NoError(t, st2.RestoreIndex())

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_RestoreTrustsDiskSize(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Put(episode(30, 128)))
	require.NoError(t, st.Close())

	// Truncate the blob behind the store's back.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "30.audio"), []byte("short"), 0644))

	st2 := newTestStore(t, dir)
	require.NoError(t, st2.RestoreIndex())

	meta, err := st2.GetMeta(30)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, int64(5), meta.FileSize)
}

func TestFileStore_RestoreCorruptIndexStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "episodes.idx.zst"), []byte("garbage"), 0644))

	broken := &testutil.MockCompressor{
		DecompressFn: func([]byte) ([]byte, error) { return nil, errors.New("bad frame") },
	}
	st, err := NewFileStore(storeConfig(dir), broken, &testutil.MockLogger{})
	require.NoError(t, err)

	require.NoError(t, st.RestoreIndex())
	assert.Zero(t, st.Count())
}

func TestFileStore_GetSelfHealsMissingBlob(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Put(episode(8, 16)))
	require.NoError(t, os.Remove(filepath.Join(dir, "8.audio")))

	got, err := st.Get(8)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := st.Has(8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_PersistFailureRollsBackPut(t *testing.T) {
	dir := t.TempDir()
	failing := &testutil.MockCompressor{
		CompressFn: func([]byte) ([]byte, error) { return nil, errors.New("encoder broken") },
	}
	st, err := NewFileStore(storeConfig(dir), failing, &testutil.MockLogger{})
	require.NoError(t, err)

	require.Error(t, st.Put(episode(9, 16)))

	ok, herr := st.Has(9)
	require.NoError(t, herr)
	assert.False(t, ok)
	_, serr := os.Stat(filepath.Join(dir, "9.audio"))
	assert.True(t, os.IsNotExist(serr))
}

func TestFileStore_UnwritableDirIsStorageUnavailable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks do not apply")
	}
	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0500))
	t.Cleanup(func() { os.Chmod(parent, 0755) })

	_, err := NewFileStore(storeConfig(filepath.Join(parent, "nested")), &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage unavailable")
}
