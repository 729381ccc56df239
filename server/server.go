// Package server wires the canonical site routes: creator and book
// pages, page images, release artifacts and feeds.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	v1 "github.com/zcomx/zco-mx/api/v1"
	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/feeds"
	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/middleware"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/upload"
	"github.com/zcomx/zco-mx/worker"
)

type Server struct {
	Server *http.Server

	store *store.Store
	rend  *rendition.Renditioner
	feeds *feeds.Generator
}

func NewServer(ctx context.Context, s *store.Store, uploader *upload.Uploader,
	rend *rendition.Renditioner, pool *worker.Pool) (*Server, error) {

	server := &Server{
		store: s,
		rend:  rend,
		feeds: feeds.NewGenerator(s, config.Opts.BaseURL),
	}

	router := mux.NewRouter()
	m := middleware.NewMiddleware(s)
	router.Use(m.LoggingRequest)

	router.HandleFunc("/healthcheck", server.healthcheck).Methods(http.MethodGet)
	router.HandleFunc("/version", server.version).Methods(http.MethodGet)

	v1.Server(router, s, uploader, rend, pool, config.Opts.TmpDir())

	router.HandleFunc("/images/{size}/{name}", server.serveImage).Methods(http.MethodGet)

	router.HandleFunc("/zco.mx.rss", server.siteRSS).Methods(http.MethodGet)
	router.HandleFunc("/zco.mx.torrent", server.siteTorrent).Methods(http.MethodGet)

	// Extension routes come first: {title} alone would swallow them.
	router.HandleFunc("/{creator}/{title}.cbz", server.bookCBZ).Methods(http.MethodGet)
	router.HandleFunc("/{creator}/{title}.rss", server.bookRSS).Methods(http.MethodGet)
	router.HandleFunc("/{creator}/{title}.torrent", server.bookTorrent).Methods(http.MethodGet)
	router.HandleFunc("/{creator}.rss", server.creatorRSS).Methods(http.MethodGet)
	router.HandleFunc("/{creator}/{title}/{page}", server.pageImage).Methods(http.MethodGet)
	router.HandleFunc("/{creator}/{title}", server.bookPage).Methods(http.MethodGet)
	router.HandleFunc("/{creator}", server.creatorPage).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(server.notFound)

	addr := net.JoinHostPort(config.Opts.Host, strconv.Itoa(config.Opts.Port))
	server.Server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return server, nil
}

func (s *Server) Start() error {
	log.Info("Server listening", zap.String("addr", s.Server.Addr))
	if err := s.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.Server.Shutdown(ctx); err != nil {
		log.Error("Failed to shut down server", zap.Error(err))
	}
	log.Info("Server stopped")
}
