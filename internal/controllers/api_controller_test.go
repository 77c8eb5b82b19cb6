package controllers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcache/internal/models"
	"podcache/internal/offline"
	"podcache/internal/testutil"
)

// local cache mock so controller tests do not need a real store
type mockCache struct {
	mu            sync.Mutex
	downloaded    map[int64]bool
	downloadCalls []int64
	downloadErr   error
	isErr         error
	progressPct   float64
	progressOn    bool
	playbackRef   *models.PlaybackRef
	playbackErr   error
	removeErr     error
	clearErr      error
	removed       []int64
	cleared       int
	metas         []models.EpisodeMeta
	listErr       error
	quota         models.StorageQuota
	downloadDone  chan struct{}
}

func newMockCache() *mockCache {
	return &mockCache{downloaded: make(map[int64]bool)}
}

func (m *mockCache) IsDownloaded(id int64) (bool, error) {
	if m.isErr != nil {
		return false, m.isErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloaded[id], nil
}

func (m *mockCache) Download(_ context.Context, id int64, _ string, _ string, _ offline.ProgressFunc) error {
	m.mu.Lock()
	m.downloadCalls = append(m.downloadCalls, id)
	m.mu.Unlock()
	if m.downloadDone != nil {
		defer close(m.downloadDone)
	}
	return m.downloadErr
}

func (m *mockCache) Playback(int64) (*models.PlaybackRef, error) {
	return m.playbackRef, m.playbackErr
}

func (m *mockCache) Progress(int64) (float64, bool) { return m.progressPct, m.progressOn }

func (m *mockCache) Remove(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return m.removeErr
}

func (m *mockCache) ListDownloaded() ([]models.EpisodeMeta, error) { return m.metas, m.listErr }
func (m *mockCache) Quota() models.StorageQuota                    { return m.quota }
func (m *mockCache) CleanupOld(context.Context) (int, error)       { return 0, nil }
func (m *mockCache) CleanupListened(context.Context, []int64) (int, error) {
	return 0, nil
}

func (m *mockCache) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	return m.clearErr
}

type mockScheduler struct {
	cleanupCalls int
}

func (m *mockScheduler) Init()                      {}
func (m *mockScheduler) Stop()                      {}
func (m *mockScheduler) RunCleanup(context.Context) { m.cleanupCalls++ }
func (m *mockScheduler) Restore() error             { return nil }
func (m *mockScheduler) Persist() error             { return nil }

type apiFixture struct {
	controller *ApiController
	cache      *mockCache
	scheduler  *mockScheduler
	respCache  *testutil.MockRespCache
	metrics    *testutil.MockMetrics
}

func newApiFixture() *apiFixture {
	f := &apiFixture{
		cache:     newMockCache(),
		scheduler: &mockScheduler{},
		respCache: testutil.NewMockRespCache(),
		metrics:   &testutil.MockMetrics{},
	}
	f.controller = NewApiController(&testutil.MockLogger{}, f.cache, f.scheduler, f.respCache, f.metrics)
	return f
}

func withID(r *http.Request, id string) *http.Request {
	return mux.SetURLVars(r, map[string]string{"id": id})
}

// --- StartDownload ---

func TestStartDownload_AcceptsAndRunsAsync(t *testing.T) {
	f := newApiFixture()
	f.cache.downloadDone = make(chan struct{})

	body := `{"id":42,"title":"Ep 1","url":"http://remote/42.mp3"}`
	req := httptest.NewRequest(http.MethodPost, "/downloads", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.controller.StartDownload(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "downloading", resp["state"])

	select {
	case <-f.cache.downloadDone:
	case <-time.After(time.Second):
		t.Fatal("download goroutine never ran")
	}
	assert.Equal(t, []int64{42}, f.cache.downloadCalls)
}

func TestStartDownload_AlreadyStoredAnswersImmediately(t *testing.T) {
	f := newApiFixture()
	f.cache.downloaded[42] = true

	body := `{"id":42,"title":"Ep 1","url":"http://remote/42.mp3"}`
	req := httptest.NewRequest(http.MethodPost, "/downloads", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.controller.StartDownload(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "downloaded")
	assert.Empty(t, f.cache.downloadCalls)
}

func TestStartDownload_RejectsMalformedBody(t *testing.T) {
	f := newApiFixture()
	req := httptest.NewRequest(http.MethodPost, "/downloads", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	f.controller.StartDownload(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartDownload_RejectsIncompleteRequest(t *testing.T) {
	f := newApiFixture()
	for _, body := range []string{
		`{"title":"Ep","url":"http://x"}`,
		`{"id":1,"url":"http://x"}`,
		`{"id":1,"title":"Ep"}`,
		`{"id":-5,"title":"Ep","url":"http://x"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/downloads", strings.NewReader(body))
		w := httptest.NewRecorder()
		f.controller.StartDownload(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestStartDownload_StoreErrorIs500(t *testing.T) {
	f := newApiFixture()
	f.cache.isErr = errors.New("index gone")

	body := `{"id":1,"title":"Ep","url":"http://x"}`
	req := httptest.NewRequest(http.MethodPost, "/downloads", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.controller.StartDownload(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// --- DownloadStatus ---

func TestDownloadStatus_Running(t *testing.T) {
	f := newApiFixture()
	f.cache.progressOn = true
	f.cache.progressPct = 37.5

	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/status", nil), "42")
	w := httptest.NewRecorder()
	f.controller.DownloadStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "downloading", resp["state"])
	assert.Equal(t, 37.5, resp["progress"])
}

func TestDownloadStatus_Downloaded(t *testing.T) {
	f := newApiFixture()
	f.cache.downloaded[42] = true

	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/status", nil), "42")
	w := httptest.NewRecorder()
	f.controller.DownloadStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"downloaded"`)
	assert.NotContains(t, w.Body.String(), "progress")
}

func TestDownloadStatus_Absent(t *testing.T) {
	f := newApiFixture()

	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/status", nil), "42")
	w := httptest.NewRecorder()
	f.controller.DownloadStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"absent"`)
}

func TestDownloadStatus_StoreErrorDegradesToAbsent(t *testing.T) {
	f := newApiFixture()
	f.cache.isErr = errors.New("index gone")

	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/status", nil), "42")
	w := httptest.NewRecorder()
	f.controller.DownloadStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"absent"`)
}

func TestDownloadStatus_BadID(t *testing.T) {
	f := newApiFixture()
	for _, id := range []string{"abc", "0", "-3", ""} {
		req := withID(httptest.NewRequest(http.MethodGet, "/episodes/x/status", nil), id)
		w := httptest.NewRecorder()
		f.controller.DownloadStatus(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "id %q", id)
	}
}

// --- listings and quota ---

func TestGetEpisodes_CachesResponse(t *testing.T) {
	f := newApiFixture()
	f.cache.metas = []models.EpisodeMeta{{ID: 1, Title: "Ep", FileSize: 10}}

	req := httptest.NewRequest(http.MethodGet, "/episodes", nil)
	w := httptest.NewRecorder()
	f.controller.GetEpisodes(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	first := w.Body.String()
	assert.Contains(t, first, `"Ep"`)

	w2 := httptest.NewRecorder()
	f.controller.GetEpisodes(w2, req)
	assert.Equal(t, first, w2.Body.String())
	assert.Equal(t, 1, f.metrics.CacheHits)
	assert.Equal(t, 1, f.metrics.CacheMisses)
}

func TestGetQuota_ReturnsSnapshot(t *testing.T) {
	f := newApiFixture()
	f.cache.quota = models.StorageQuota{Used: 100, Total: 500, Available: 400}

	req := httptest.NewRequest(http.MethodGet, "/quota", nil)
	w := httptest.NewRecorder()
	f.controller.GetQuota(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var snap models.StorageQuota
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, f.cache.quota, snap)
}

// --- audio ---

func TestServeAudio_StreamsStoredPayload(t *testing.T) {
	f := newApiFixture()
	payload := []byte("mp3 bytes here")
	f.cache.playbackRef = &models.PlaybackRef{
		ID:           42,
		FileSize:     int64(len(payload)),
		DownloadedAt: time.Now(),
		Content:      bytes.NewReader(payload),
	}

	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/audio", nil), "42")
	w := httptest.NewRecorder()
	f.controller.ServeAudio(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, payload, w.Body.Bytes())
}

func TestServeAudio_SupportsRangeRequests(t *testing.T) {
	f := newApiFixture()
	payload := []byte("0123456789")
	f.cache.playbackRef = &models.PlaybackRef{
		ID:           42,
		FileSize:     10,
		DownloadedAt: time.Now(),
		Content:      bytes.NewReader(payload),
	}

	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/audio", nil), "42")
	req.Header.Set("Range", "bytes=2-5")
	w := httptest.NewRecorder()
	f.controller.ServeAudio(w, req)

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "2345", w.Body.String())
}

func TestServeAudio_AbsentIs404(t *testing.T) {
	f := newApiFixture()
	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/audio", nil), "42")
	w := httptest.NewRecorder()
	f.controller.ServeAudio(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeAudio_PlaybackErrorIs500(t *testing.T) {
	f := newApiFixture()
	f.cache.playbackErr = errors.New("touch failed")
	req := withID(httptest.NewRequest(http.MethodGet, "/episodes/42/audio", nil), "42")
	w := httptest.NewRecorder()
	f.controller.ServeAudio(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// --- eviction endpoints ---

func TestRemoveEpisode_InvalidatesListings(t *testing.T) {
	f := newApiFixture()
	f.respCache.Set("episodes", []byte("stale"))
	f.respCache.Set("quota", []byte("stale"))

	req := withID(httptest.NewRequest(http.MethodDelete, "/episodes/42", nil), "42")
	w := httptest.NewRecorder()
	f.controller.RemoveEpisode(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{42}, f.cache.removed)
	_, ok := f.respCache.Get("episodes")
	assert.False(t, ok)
	_, ok = f.respCache.Get("quota")
	assert.False(t, ok)
}

func TestRemoveEpisode_ErrorIs500(t *testing.T) {
	f := newApiFixture()
	f.cache.removeErr = errors.New("disk broke")
	req := withID(httptest.NewRequest(http.MethodDelete, "/episodes/42", nil), "42")
	w := httptest.NewRecorder()
	f.controller.RemoveEpisode(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClearDownloads(t *testing.T) {
	f := newApiFixture()
	req := httptest.NewRequest(http.MethodDelete, "/downloads", nil)
	w := httptest.NewRecorder()
	f.controller.ClearDownloads(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.cache.cleared)
}

func TestRunCleanup_TriggersSchedulerPass(t *testing.T) {
	f := newApiFixture()
	req := httptest.NewRequest(http.MethodPost, "/cleanup", nil)
	w := httptest.NewRecorder()
	f.controller.RunCleanup(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.scheduler.cleanupCalls)
}
