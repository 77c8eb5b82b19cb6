package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"podcache/internal/providers"
	"podcache/internal/structures"
)

// CatalogServiceInterface is the listened-status collaborator: it reports
// which episode ids the catalog considers fully consumed, making them
// candidates for delayed cleanup.
type CatalogServiceInterface interface {
	ListenedEpisodes(ctx context.Context) ([]int64, error)
}

type catalogPodcast struct {
	ID       int64 `json:"id"`
	Listened bool  `json:"listened"`
}

type catalogResponse struct {
	Podcasts []catalogPodcast `json:"podcasts"`
}

type CatalogService struct {
	baseURL string
	client  *http.Client
	logger  providers.Logger
}

func NewCatalogService(conf *structures.Config, logger providers.Logger) CatalogServiceInterface {
	if conf.Catalog.BaseURL == "" {
		logger.Infof(providers.TypeApp, "No catalog configured, listened-based cleanup disabled")
		return &noopCatalog{}
	}

	timeout := conf.Catalog.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CatalogService{
		baseURL: strings.TrimSuffix(conf.Catalog.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (cs *CatalogService) ListenedEpisodes(ctx context.Context) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cs.baseURL+"/api/podcasts", nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := cs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query catalog: unexpected status %s", resp.Status)
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	var ids []int64
	for _, p := range payload.Podcasts {
		if p.Listened {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type noopCatalog struct{}

func (n *noopCatalog) ListenedEpisodes(_ context.Context) ([]int64, error) {
	return nil, nil
}
