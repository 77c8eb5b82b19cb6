package providers

import (
	"net/http"
	"podcache/internal/structures"

	"github.com/gorilla/mux"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	Delete(url string, handler http.Handler)
	Use(mw mux.MiddlewareFunc)
	Router() *mux.Router
	GetRoutes() []structures.Route
}

type RouterProvider struct {
	router *mux.Router
	routes []structures.Route
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{router: mux.NewRouter()}
}

func (rp *RouterProvider) handle(method, url string, handler http.Handler) {
	rp.router.Handle(url, handler).Methods(method)
	rp.routes = append(rp.routes, structures.Route{
		Url:     url,
		Method:  method,
		Handler: handler,
	})
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.handle(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.handle(http.MethodPost, url, handler)
}

func (rp *RouterProvider) Delete(url string, handler http.Handler) {
	rp.handle(http.MethodDelete, url, handler)
}

func (rp *RouterProvider) Use(mw mux.MiddlewareFunc) {
	rp.router.Use(mw)
}

func (rp *RouterProvider) Router() *mux.Router {
	return rp.router
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}
