package offline

import (
	"context"
	"sync"

	"github.com/roylee0704/gron"

	"podcache/internal/offline/interfaces"
	"podcache/internal/providers"
	"podcache/internal/services"
	"podcache/internal/store"
	"podcache/internal/structures"
)

// Scheduler drives the periodic cleanup pass: listened-based delayed
// cleanup first, then the age-based one. Both routines are idempotent, so
// overlapping or redundant triggers are harmless; opsMu merely keeps two
// passes from interleaving their log output.
type Scheduler struct {
	config  *structures.Config
	logger  providers.Logger
	cache   CacheInterface
	catalog services.CatalogServiceInterface
	store   store.EpisodeStoreInterface
	cron    *gron.Cron
	opsMu   sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Cleanup.Interval), func() {
		s.RunCleanup(context.Background())
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunCleanup executes one full cleanup pass. Also called on demand by the
// API, so an operator can trigger the same routine the timer does.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	listenedIDs, err := s.catalog.ListenedEpisodes(ctx)
	if err != nil {
		s.logger.Warnf(providers.TypeCleanup, "Cannot fetch listened episodes: %s", err)
	} else if len(listenedIDs) > 0 {
		if _, err := s.cache.CleanupListened(ctx, listenedIDs); err != nil {
			s.logger.Errorf(providers.TypeCleanup, "Listened cleanup failed: %s", err)
		}
	}

	if _, err := s.cache.CleanupOld(ctx); err != nil {
		s.logger.Errorf(providers.TypeCleanup, "Age cleanup failed: %s", err)
	}
}

// Restore rebuilds the store index from disk. Called once at startup.
func (s *Scheduler) Restore() error {
	return s.store.RestoreIndex()
}

// Persist flushes the store index a final time. Called at shutdown.
func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Flushing episode index...")
	return s.store.Close()
}

func NewScheduler(config *structures.Config, logger providers.Logger, cache CacheInterface, catalog services.CatalogServiceInterface, episodeStore store.EpisodeStoreInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:  config,
		logger:  logger,
		cache:   cache,
		catalog: catalog,
		store:   episodeStore,
	}
}
