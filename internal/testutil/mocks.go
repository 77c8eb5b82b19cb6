package testutil

import (
	"context"
	"sync"
	"time"

	"podcache/internal/models"
	"podcache/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Has reports whether any entry with the given level was recorded.
func (m *MockLogger) Has(level string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Logs {
		if e.Level == level {
			return true
		}
	}
	return false
}

// MockCompressor implements interfaces.CompressorInterface with injectable
// behavior. Defaults to identity.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu              sync.Mutex
	Requests        int
	CacheHits       int
	CacheMisses     int
	Downloads       map[string]int
	DownloadedBytes int64
	Evictions       map[string]int
	EpisodesStored  int
	BytesStored     int64
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) IncDownloads(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Downloads == nil {
		m.Downloads = make(map[string]int)
	}
	m.Downloads[result]++
}
func (m *MockMetrics) AddDownloadedBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadedBytes += n
}
func (m *MockMetrics) ObserveDownloadDuration(_ time.Duration) {}
func (m *MockMetrics) IncEvictions(reason string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Evictions == nil {
		m.Evictions = make(map[string]int)
	}
	m.Evictions[reason] += count
}
func (m *MockMetrics) SetEpisodesStored(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EpisodesStored = count
}
func (m *MockMetrics) SetBytesStored(b int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BytesStored = b
}

// MockRespCache implements providers.CacheProviderInterface.
type MockRespCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockRespCache() *MockRespCache {
	return &MockRespCache{Data: make(map[string][]byte)}
}

func (m *MockRespCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockRespCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockRespCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockStore is an in-memory store.EpisodeStoreInterface with injectable
// failures.
type MockStore struct {
	mu           sync.Mutex
	Episodes     map[int64]*models.StoredEpisode
	PutErr       error
	GetErr       error
	DeleteErr    map[int64]error
	TouchErr     error
	RestoreCalls int
	CloseCalls   int
}

func NewMockStore() *MockStore {
	return &MockStore{Episodes: make(map[int64]*models.StoredEpisode)}
}

func (m *MockStore) Has(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return false, m.GetErr
	}
	_, ok := m.Episodes[id]
	return ok, nil
}

func (m *MockStore) Get(id int64) (*models.StoredEpisode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	ep, ok := m.Episodes[id]
	if !ok {
		return nil, nil
	}
	cp := *ep
	return &cp, nil
}

func (m *MockStore) GetMeta(id int64) (*models.EpisodeMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	ep, ok := m.Episodes[id]
	if !ok {
		return nil, nil
	}
	meta := ep.Meta()
	return &meta, nil
}

func (m *MockStore) Put(ep *models.StoredEpisode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	cp := *ep
	m.Episodes[ep.ID] = &cp
	return nil
}

func (m *MockStore) Touch(id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TouchErr != nil {
		return m.TouchErr
	}
	if ep, ok := m.Episodes[id]; ok && at.After(ep.LastAccessed) {
		ep.LastAccessed = at
	}
	return nil
}

func (m *MockStore) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.DeleteErr[id]; ok {
		return err
	}
	delete(m.Episodes, id)
	return nil
}

func (m *MockStore) List() ([]models.EpisodeMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	metas := make([]models.EpisodeMeta, 0, len(m.Episodes))
	for _, ep := range m.Episodes {
		metas = append(metas, ep.Meta())
	}
	return metas, nil
}

func (m *MockStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Episodes = make(map[int64]*models.StoredEpisode)
	return nil
}

func (m *MockStore) UsedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, ep := range m.Episodes {
		total += ep.FileSize
	}
	return total
}

func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Episodes)
}

func (m *MockStore) RestoreIndex() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RestoreCalls++
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// MockQuota returns a fixed quota snapshot.
type MockQuota struct {
	Snapshot models.StorageQuota
}

func (m *MockQuota) Quota() models.StorageQuota { return m.Snapshot }

// MockCatalog implements services.CatalogServiceInterface.
type MockCatalog struct {
	IDs []int64
	Err error
}

func (m *MockCatalog) ListenedEpisodes(_ context.Context) ([]int64, error) {
	return m.IDs, m.Err
}
