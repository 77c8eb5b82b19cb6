package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"podcache/internal/models"
	"podcache/internal/providers"
	"podcache/internal/store"
	"podcache/internal/structures"
)

// ProgressFunc receives download progress in percent. Values are in
// [0, 100] and non-decreasing; 100 is only reported on success.
type ProgressFunc func(percent float64)

const (
	progressFloor   = 5.0
	progressCeiling = 95.0
	readChunkSize   = 64 * 1024
	mib             = 1024 * 1024
)

// CacheInterface is the single authority over which episodes are stored
// offline: admission, retrieval, eviction and reporting.
type CacheInterface interface {
	IsDownloaded(id int64) (bool, error)
	Download(ctx context.Context, id int64, title, url string, onProgress ProgressFunc) error
	Playback(id int64) (*models.PlaybackRef, error)
	Progress(id int64) (float64, bool)
	Remove(id int64) error
	ListDownloaded() ([]models.EpisodeMeta, error)
	Quota() models.StorageQuota
	CleanupOld(ctx context.Context) (int, error)
	CleanupListened(ctx context.Context, listenedIDs []int64) (int, error)
	ClearAll() error
}

// inflightDownload tracks one running download so concurrent callers for
// the same id join it instead of racing a second fetch.
type inflightDownload struct {
	done     chan struct{}
	err      error
	progress atomic.Uint64 // float64 bits
}

func (op *inflightDownload) setProgress(pct float64) {
	op.progress.Store(math.Float64bits(pct))
}

func (op *inflightDownload) getProgress() float64 {
	return math.Float64frombits(op.progress.Load())
}

type Cache struct {
	store   store.EpisodeStoreInterface
	quota   store.QuotaProviderInterface
	fetcher FetcherInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	clock   func() time.Time

	minFreeBytes  int64
	retention     time.Duration
	listenedGrace time.Duration
	assumedBytes  int64

	mu       sync.Mutex
	inflight map[int64]*inflightDownload
}

func NewCache(conf *structures.Config, episodeStore store.EpisodeStoreInterface, quota store.QuotaProviderInterface, fetcher FetcherInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) CacheInterface {
	return &Cache{
		store:         episodeStore,
		quota:         quota,
		fetcher:       fetcher,
		logger:        logger,
		metrics:       metrics,
		clock:         time.Now,
		minFreeBytes:  int64(conf.Storage.MinFreeMB) * mib,
		retention:     conf.Storage.Retention,
		listenedGrace: conf.Storage.ListenedGrace,
		assumedBytes:  int64(conf.Storage.AssumedEpisodeMB) * mib,
		inflight:      make(map[int64]*inflightDownload),
	}
}

func (c *Cache) IsDownloaded(id int64) (bool, error) {
	return c.store.Has(id)
}

// Download admits one episode into the offline store. It is idempotent:
// an already stored id succeeds without network I/O, and a concurrent
// download of the same id is joined rather than duplicated. The record is
// committed atomically at the end; a failed transfer leaves nothing behind.
func (c *Cache) Download(ctx context.Context, id int64, title, url string, onProgress ProgressFunc) error {
	if id <= 0 || title == "" || url == "" {
		return fmt.Errorf("download: id, title and url are required")
	}

	if ok, err := c.store.Has(id); err != nil {
		return fmt.Errorf("check episode %d: %w", id, err)
	} else if ok {
		c.metrics.IncDownloads(providers.ResultDuplicate)
		return nil
	}

	c.mu.Lock()
	if op, ok := c.inflight[id]; ok {
		c.mu.Unlock()
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			// The shared operation keeps running; only this caller
			// abandons the result.
			return ctx.Err()
		}
	}
	op := &inflightDownload{done: make(chan struct{})}
	c.inflight[id] = op
	c.mu.Unlock()

	op.err = c.runDownload(ctx, id, title, url, op, onProgress)

	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
	close(op.done)

	return op.err
}

func (c *Cache) runDownload(ctx context.Context, id int64, title, url string, op *inflightDownload, onProgress ProgressFunc) error {
	start := c.clock()

	// Best-effort nudge: when free space is below the floor, age out old
	// episodes first. The download proceeds either way; a real shortage
	// surfaces at commit time.
	quota := c.quota.Quota()
	if !quota.Unknown() && quota.Available < c.minFreeBytes {
		c.logger.Infof(providers.TypeDownload, "Low storage (%d bytes free), running age-based cleanup", quota.Available)
		if _, err := c.CleanupOld(ctx); err != nil {
			c.logger.Warnf(providers.TypeDownload, "Pre-download cleanup failed: %s", err)
		}
	}

	res, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.metrics.IncDownloads(providers.ResultFailed)
		return fmt.Errorf("fetch episode %d: %w", id, err)
	}
	defer res.Body.Close()

	report := func(pct float64) {
		op.setProgress(pct)
		if onProgress != nil {
			onProgress(pct)
		}
	}

	payload, err := c.readAll(res, report)
	if err != nil {
		c.metrics.IncDownloads(providers.ResultFailed)
		return fmt.Errorf("read episode %d: %w", id, err)
	}

	now := c.clock()
	ep := &models.StoredEpisode{
		ID:           id,
		Title:        title,
		AudioData:    payload,
		DownloadedAt: now,
		LastAccessed: now,
		FileSize:     int64(len(payload)),
	}
	if err := c.store.Put(ep); err != nil {
		c.metrics.IncDownloads(providers.ResultFailed)
		return fmt.Errorf("store episode %d: %w", id, err)
	}

	report(100)

	c.metrics.IncDownloads(providers.ResultOK)
	c.metrics.AddDownloadedBytes(ep.FileSize)
	c.metrics.ObserveDownloadDuration(c.clock().Sub(start))
	c.updateGauges()
	c.logger.Infof(providers.TypeDownload, "Stored episode %d (%q, %d bytes)", id, title, ep.FileSize)
	return nil
}

// readAll drains the stream into memory, reporting progress after every
// chunk. With a declared length progress is exact; without one it is an
// estimate against a typical episode size, clamped so the caller always
// sees forward motion between 5 and 95.
func (c *Cache) readAll(res *FetchResult, report ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if res.ContentLength > 0 {
		buf.Grow(int(res.ContentLength))
	}

	chunk := make([]byte, readChunkSize)
	var received int64
	var last float64

	for {
		n, err := res.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)

			var pct float64
			if res.ContentLength > 0 {
				pct = math.Min(100, float64(received)/float64(res.ContentLength)*100)
			} else {
				pct = float64(received) / float64(c.assumedBytes) * 100
				pct = math.Max(progressFloor, math.Min(progressCeiling, pct))
			}
			if pct > last {
				last = pct
				report(pct)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Progress reports the percent of an in-flight download, or false when no
// download for that id is running.
func (c *Cache) Progress(id int64) (float64, bool) {
	c.mu.Lock()
	op, ok := c.inflight[id]
	c.mu.Unlock()
	if !ok {
		return 0, false
	}
	return op.getProgress(), true
}

// Playback produces a fresh playable handle over the stored audio and bumps
// the record's last-access time. A nil ref means the episode is not stored
// and the caller should stream from the network instead.
func (c *Cache) Playback(id int64) (*models.PlaybackRef, error) {
	ep, err := c.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("load episode %d: %w", id, err)
	}
	if ep == nil {
		return nil, nil
	}

	if err := c.store.Touch(id, c.clock()); err != nil {
		return nil, fmt.Errorf("touch episode %d: %w", id, err)
	}

	return &models.PlaybackRef{
		ID:           ep.ID,
		Title:        ep.Title,
		FileSize:     ep.FileSize,
		DownloadedAt: ep.DownloadedAt,
		Content:      bytes.NewReader(ep.AudioData),
	}, nil
}

func (c *Cache) Remove(id int64) error {
	ok, err := c.store.Has(id)
	if err != nil {
		return err
	}
	if err := c.store.Delete(id); err != nil {
		return err
	}
	if ok {
		c.metrics.IncEvictions(providers.ReasonManual, 1)
		c.updateGauges()
	}
	return nil
}

func (c *Cache) ListDownloaded() ([]models.EpisodeMeta, error) {
	return c.store.List()
}

func (c *Cache) Quota() models.StorageQuota {
	return c.quota.Quota()
}

// CleanupOld drops every episode downloaded before the retention window.
// Last access is deliberately ignored. Per-record failures are logged and
// skipped so one bad record never blocks the batch.
func (c *Cache) CleanupOld(ctx context.Context) (int, error) {
	metas, err := c.store.List()
	if err != nil {
		return 0, fmt.Errorf("list episodes: %w", err)
	}

	cutoff := c.clock().Add(-c.retention)
	removed := 0
	for _, meta := range metas {
		if ctx.Err() != nil {
			break
		}
		if !meta.DownloadedAt.Before(cutoff) {
			continue
		}
		if err := c.store.Delete(meta.ID); err != nil {
			c.logger.Errorf(providers.TypeCleanup, "Failed to remove old episode %d: %s", meta.ID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.metrics.IncEvictions(providers.ReasonAge, removed)
		c.updateGauges()
		c.logger.Infof(providers.TypeCleanup, "Removed %d episodes past retention", removed)
	}
	return removed, nil
}

// CleanupListened drops each listed episode, but only once its download is
// older than the grace window, so a freshly fetched copy survives the
// "mark as listened" click for a while.
func (c *Cache) CleanupListened(ctx context.Context, listenedIDs []int64) (int, error) {
	cutoff := c.clock().Add(-c.listenedGrace)
	removed := 0
	for _, id := range listenedIDs {
		if ctx.Err() != nil {
			break
		}
		meta, err := c.store.GetMeta(id)
		if err != nil {
			c.logger.Errorf(providers.TypeCleanup, "Failed to inspect listened episode %d: %s", id, err)
			continue
		}
		if meta == nil || !meta.DownloadedAt.Before(cutoff) {
			continue
		}
		if err := c.store.Delete(id); err != nil {
			c.logger.Errorf(providers.TypeCleanup, "Failed to remove listened episode %d: %s", id, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.metrics.IncEvictions(providers.ReasonListened, removed)
		c.updateGauges()
		c.logger.Infof(providers.TypeCleanup, "Removed %d listened episodes", removed)
	}
	return removed, nil
}

func (c *Cache) ClearAll() error {
	count := c.store.Count()
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if count > 0 {
		c.metrics.IncEvictions(providers.ReasonClear, count)
	}
	c.updateGauges()
	c.logger.Infof(providers.TypeCleanup, "Cleared all %d offline episodes", count)
	return nil
}

func (c *Cache) updateGauges() {
	c.metrics.SetEpisodesStored(c.store.Count())
	c.metrics.SetBytesStored(c.store.UsedBytes())
}
