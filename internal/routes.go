package internal

import (
	"net/http"
	"podcache/internal/controllers"
	"podcache/internal/providers"
	"podcache/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()
	limiter := providers.NewRateLimiter(conf.Download.RatePerMinute, conf.Download.Burst)

	routers.Get("/episodes", http.HandlerFunc(apiController.GetEpisodes))
	routers.Get("/episodes/{id}/status", http.HandlerFunc(apiController.DownloadStatus))
	routers.Get("/episodes/{id}/audio", http.HandlerFunc(apiController.ServeAudio))
	routers.Delete("/episodes/{id}", http.HandlerFunc(apiController.RemoveEpisode))
	routers.Post("/downloads", limiter.Middleware(http.HandlerFunc(apiController.StartDownload)))
	routers.Delete("/downloads", http.HandlerFunc(apiController.ClearDownloads))
	routers.Get("/quota", http.HandlerFunc(apiController.GetQuota))
	routers.Post("/cleanup", http.HandlerFunc(apiController.RunCleanup))
	return routers
}
