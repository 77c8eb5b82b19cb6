package controllers

import (
	"context"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"podcache/internal/offline"
	"podcache/internal/offline/interfaces"
	"podcache/internal/providers"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const (
	cacheKeyEpisodes = "episodes"
	cacheKeyQuota    = "quota"
)

type ApiController struct {
	logger    providers.Logger
	cache     offline.CacheInterface
	scheduler interfaces.SchedulerInterface
	respCache providers.CacheProviderInterface
	metrics   providers.MetricsProviderInterface
}

func NewApiController(logger providers.Logger, cache offline.CacheInterface, scheduler interfaces.SchedulerInterface, respCache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface) *ApiController {
	return &ApiController{
		logger:    logger,
		cache:     cache,
		scheduler: scheduler,
		respCache: respCache,
		metrics:   metrics,
	}
}

func episodeID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	gson, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.respCache.Get(cacheKey); ok {
		ac.metrics.IncCacheHits()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	ac.metrics.IncCacheMisses()

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.respCache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) invalidate() {
	ac.respCache.Del(cacheKeyEpisodes)
	ac.respCache.Del(cacheKeyQuota)
}

type downloadRequest struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type statusResponse struct {
	State    string   `json:"state"`
	Progress *float64 `json:"progress,omitempty"`
}

// StartDownload kicks off an asynchronous admission and returns
// immediately; callers poll DownloadStatus for progress. An episode that
// is already stored answers 200 straight away.
func (ac *ApiController) StartDownload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.ID <= 0 || payload.Title == "" || payload.URL == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	downloaded, err := ac.cache.IsDownloaded(payload.ID)
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Store check failed for episode %d: %s", payload.ID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if downloaded {
		writeJSON(w, http.StatusOK, statusResponse{State: "downloaded"})
		return
	}

	go func() {
		// Deliberately detached from the request context: the transfer
		// outlives the 202 response.
		if err := ac.cache.Download(context.Background(), payload.ID, payload.Title, payload.URL, nil); err != nil {
			ac.logger.Errorf(providers.TypeDownload, "Download of episode %d failed: %s", payload.ID, err)
		}
		ac.invalidate()
	}()

	writeJSON(w, http.StatusAccepted, statusResponse{State: "downloading"})
}

func (ac *ApiController) DownloadStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if pct, running := ac.cache.Progress(id); running {
		writeJSON(w, http.StatusOK, statusResponse{State: "downloading", Progress: &pct})
		return
	}

	downloaded, err := ac.cache.IsDownloaded(id)
	if err != nil {
		// Degrade to "absent": the caller falls back to streaming online.
		ac.logger.Errorf(providers.TypeApp, "Store check failed for episode %d: %s", id, err)
		downloaded = false
	}
	if downloaded {
		writeJSON(w, http.StatusOK, statusResponse{State: "downloaded"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{State: "absent"})
}

func (ac *ApiController) GetEpisodes(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, cacheKeyEpisodes, func() (any, error) {
		return ac.cache.ListDownloaded()
	})
}

func (ac *ApiController) GetQuota(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, cacheKeyQuota, func() (any, error) {
		return ac.cache.Quota(), nil
	})
}

// ServeAudio streams the stored payload. ServeContent handles range
// requests, so seeking in the player works against the offline copy.
func (ac *ApiController) ServeAudio(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ref, err := ac.cache.Playback(id)
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Playback of episode %d failed: %s", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if ref == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeContent(w, r, "", ref.DownloadedAt, ref.Content)
}

func (ac *ApiController) RemoveEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := ac.cache.Remove(id); err != nil {
		ac.logger.Errorf(providers.TypeApp, "Removal of episode %d failed: %s", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) ClearDownloads(w http.ResponseWriter, r *http.Request) {
	if err := ac.cache.ClearAll(); err != nil {
		ac.logger.Errorf(providers.TypeApp, "Clearing downloads failed: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// RunCleanup is the on-demand cleanup driver; it runs the same idempotent
// pass the periodic timer does.
func (ac *ApiController) RunCleanup(w http.ResponseWriter, r *http.Request) {
	ac.scheduler.RunCleanup(r.Context())
	ac.invalidate()
	w.WriteHeader(http.StatusNoContent)
}
