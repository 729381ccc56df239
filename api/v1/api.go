package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zcomx/zco-mx/middleware"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/upload"
	"github.com/zcomx/zco-mx/worker"
)

type Handler struct {
	store    *store.Store
	uploader *upload.Uploader
	rend     *rendition.Renditioner
	pool     *worker.Pool
	router   *mux.Router
	tmpRoot  string
}

func Server(router *mux.Router, s *store.Store, uploader *upload.Uploader,
	rend *rendition.Renditioner, pool *worker.Pool, tmpRoot string) {

	handler := &Handler{
		store:    s,
		uploader: uploader,
		rend:     rend,
		pool:     pool,
		router:   router,
		tmpRoot:  tmpRoot,
	}

	sr := router.PathPrefix("/api/v1").Subrouter()
	middleware := middleware.NewMiddleware(s)
	sr.Use(middleware.HandleCORS)
	sr.Use(middleware.LoggingRequest)
	sr.Methods(http.MethodOptions)

	sr.HandleFunc("/creators", handler.addCreator).Methods(http.MethodPost)
	sr.HandleFunc("/creators/{id}", handler.getCreator).Methods(http.MethodGet)
	sr.HandleFunc("/books", handler.listBooks).Methods(http.MethodGet)
	sr.HandleFunc("/books", handler.addBook).Methods(http.MethodPost)
	sr.HandleFunc("/books/{id}", handler.getBook).Methods(http.MethodGet)
	sr.HandleFunc("/books/{id}/complete", handler.completeBook).Methods(http.MethodPost)
	sr.HandleFunc("/books/{id}/pages", handler.listPages).Methods(http.MethodGet)
	sr.HandleFunc("/books/{id}/upload", handler.uploadPages).Methods(http.MethodPost)
	sr.HandleFunc("/books/{id}/reorder", handler.reorderPages).Methods(http.MethodPost)
	sr.HandleFunc("/pages/delete", handler.deletePage).Methods(http.MethodDelete)
	sr.HandleFunc("/covers/{bookID}", handler.getCover).Methods(http.MethodGet)
}
