//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"podcache/internal"
	"podcache/internal/controllers"
	"podcache/internal/offline"
	"podcache/internal/providers"
	"podcache/internal/services"
	"podcache/internal/store"
	"podcache/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewCacheProvider,
		providers.NewMetricsProvider,

		offline.NewZstdCompressor,
		store.NewFileStore,
		store.NewQuotaProvider,
		offline.NewHTTPFetcher,
		offline.NewCache,
		services.NewCatalogService,
		offline.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
