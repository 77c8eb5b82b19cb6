package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"podcache/internal/models"
	"podcache/internal/offline/interfaces"
	"podcache/internal/providers"
	"podcache/internal/structures"
)

const (
	indexFileName = "episodes.idx.zst"
	blobSuffix    = ".audio"
)

// indexFile is the on-disk format of the metadata index: every stored
// episode's metadata, without payloads. Payloads live in one blob file
// per episode next to it.
type indexFile struct {
	Episodes map[int64]*models.EpisodeMeta `json:"episodes"`
}

// FileStore is a filesystem-backed episode store. Blob writes and index
// rewrites both go through a tmp file and rename, so a crash mid-write
// never leaves a partial record visible.
type FileStore struct {
	mu         sync.RWMutex
	dir        string
	index      map[int64]*models.EpisodeMeta
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileStore(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) (EpisodeStoreInterface, error) {
	if err := os.MkdirAll(conf.Storage.Dir, 0755); err != nil {
		return nil, fmt.Errorf("storage unavailable: %w", err)
	}
	return &FileStore{
		dir:        conf.Storage.Dir,
		index:      make(map[int64]*models.EpisodeMeta),
		compressor: compressor,
		logger:     logger,
	}, nil
}

func (fs *FileStore) Has(id int64) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.index[id]
	return ok, nil
}

func (fs *FileStore) GetMeta(id int64) (*models.EpisodeMeta, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	meta, ok := fs.index[id]
	if !ok {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

func (fs *FileStore) Get(id int64) (*models.StoredEpisode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	meta, ok := fs.index[id]
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(fs.blobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			// Index says present but the blob is gone. Drop the stale
			// entry and report the episode as absent.
			fs.logger.Warnf(providers.TypeApp, "Blob missing for episode %d, dropping index entry", id)
			delete(fs.index, id)
			if perr := fs.persistIndex(); perr != nil {
				fs.logger.Errorf(providers.TypeApp, "Failed to persist index after repair: %s", perr)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("read blob for episode %d: %w", id, err)
	}

	return &models.StoredEpisode{
		ID:           meta.ID,
		Title:        meta.Title,
		AudioData:    data,
		DownloadedAt: meta.DownloadedAt,
		LastAccessed: meta.LastAccessed,
		FileSize:     meta.FileSize,
	}, nil
}

// Put commits a complete episode record. Last writer wins when the id is
// already present.
func (fs *FileStore) Put(ep *models.StoredEpisode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.writeBlobAtomic(ep.ID, ep.AudioData); err != nil {
		return err
	}

	prev, hadPrev := fs.index[ep.ID]
	meta := ep.Meta()
	fs.index[ep.ID] = &meta

	if err := fs.persistIndex(); err != nil {
		// Roll back so no half-committed record survives.
		if hadPrev {
			fs.index[ep.ID] = prev
		} else {
			delete(fs.index, ep.ID)
			os.Remove(fs.blobPath(ep.ID))
		}
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

func (fs *FileStore) Touch(id int64, at time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	meta, ok := fs.index[id]
	if !ok {
		return nil
	}
	if at.After(meta.LastAccessed) {
		meta.LastAccessed = at
		if err := fs.persistIndex(); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}
	return nil
}

func (fs *FileStore) Delete(id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.index[id]; !ok {
		return nil
	}
	delete(fs.index, id)
	if err := fs.persistIndex(); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := os.Remove(fs.blobPath(id)); err != nil && !os.IsNotExist(err) {
		// The record is gone from the index; the orphan blob gets swept
		// on the next RestoreIndex.
		fs.logger.Warnf(providers.TypeApp, "Failed to remove blob for episode %d: %s", id, err)
	}
	return nil
}

func (fs *FileStore) List() ([]models.EpisodeMeta, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	metas := make([]models.EpisodeMeta, 0, len(fs.index))
	for _, meta := range fs.index {
		metas = append(metas, *meta)
	}
	return metas, nil
}

func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ids := make([]int64, 0, len(fs.index))
	for id := range fs.index {
		ids = append(ids, id)
	}
	fs.index = make(map[int64]*models.EpisodeMeta)
	if err := fs.persistIndex(); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	for _, id := range ids {
		if err := os.Remove(fs.blobPath(id)); err != nil && !os.IsNotExist(err) {
			fs.logger.Warnf(providers.TypeApp, "Failed to remove blob for episode %d: %s", id, err)
		}
	}
	return nil
}

func (fs *FileStore) UsedBytes() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var total int64
	for _, meta := range fs.index {
		total += meta.FileSize
	}
	return total
}

func (fs *FileStore) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.index)
}

// RestoreIndex loads the metadata index from disk and reconciles it with
// the blob files actually present: entries without a blob are dropped,
// orphan blobs are removed, sizes are trusted from disk. Called once at
// startup.
func (fs *FileStore) RestoreIndex() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.index = make(map[int64]*models.EpisodeMeta)

	data, err := os.ReadFile(fs.indexPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read index: %w", err)
	}
	if err == nil {
		decompressed, derr := fs.compressor.Decompress(data)
		if derr != nil {
			fs.logger.Errorf(providers.TypeApp, "Corrupt index file, starting empty: %s", derr)
		} else {
			var idx indexFile
			if jerr := json.Unmarshal(decompressed, &idx); jerr != nil {
				fs.logger.Errorf(providers.TypeApp, "Unreadable index file, starting empty: %s", jerr)
			} else if idx.Episodes != nil {
				fs.index = idx.Episodes
			}
		}
	}

	blobs, err := filepath.Glob(filepath.Join(fs.dir, "*"+blobSuffix))
	if err != nil {
		return fmt.Errorf("scan blobs: %w", err)
	}

	onDisk := make(map[int64]int64, len(blobs))
	for _, blob := range blobs {
		id, perr := blobID(blob)
		if perr != nil {
			fs.logger.Warnf(providers.TypeApp, "Ignoring unrecognized file %s", blob)
			continue
		}
		info, serr := os.Stat(blob)
		if serr != nil {
			fs.logger.Warnf(providers.TypeApp, "Cannot stat %s: %s", blob, serr)
			continue
		}
		onDisk[id] = info.Size()
	}

	for id, meta := range fs.index {
		size, ok := onDisk[id]
		if !ok {
			fs.logger.Warnf(providers.TypeApp, "Episode %d has no blob, dropping from index", id)
			delete(fs.index, id)
			continue
		}
		if size != meta.FileSize {
			fs.logger.Warnf(providers.TypeApp, "Episode %d size mismatch (index %d, disk %d), trusting disk", id, meta.FileSize, size)
			meta.FileSize = size
		}
		delete(onDisk, id)
	}

	for id := range onDisk {
		fs.logger.Warnf(providers.TypeApp, "Removing orphan blob for episode %d", id)
		if rerr := os.Remove(fs.blobPath(id)); rerr != nil {
			fs.logger.Errorf(providers.TypeApp, "Failed to remove orphan blob %d: %s", id, rerr)
		}
	}

	return fs.persistIndex()
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.persistIndex()
}

// persistIndex serializes, compresses and atomically replaces the index
// file. Must be called under fs.mu.Lock().
func (fs *FileStore) persistIndex() error {
	jsonData, err := json.Marshal(&indexFile{Episodes: fs.index})
	if err != nil {
		return err
	}
	compressed, err := fs.compressor.Compress(jsonData)
	if err != nil {
		return err
	}
	return writeFileAtomic(fs.indexPath(), compressed)
}

func (fs *FileStore) writeBlobAtomic(id int64, data []byte) error {
	return writeFileAtomic(fs.blobPath(id), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, path)
}

func (fs *FileStore) indexPath() string {
	return filepath.Join(fs.dir, indexFileName)
}

func (fs *FileStore) blobPath(id int64) string {
	return filepath.Join(fs.dir, strconv.FormatInt(id, 10)+blobSuffix)
}

func blobID(path string) (int64, error) {
	base := filepath.Base(path)
	return strconv.ParseInt(strings.TrimSuffix(base, blobSuffix), 10, 64)
}
