// Package httpapi exposes the sync services over HTTP+JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/metrics"
)

// Authenticator turns a bearer token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (entity.Session, error)
}

// Syncer is the sync surface served under /sync.
type Syncer interface {
	Push(ctx context.Context, sess entity.Session, table entity.Table, rows []json.RawMessage) ([]entity.PushResult, error)
	PushDeleted(ctx context.Context, sess entity.Session, ts []entity.Tombstone) ([]entity.PushResult, error)
	Pull(ctx context.Context, sess entity.Session, table entity.Table, since int64) ([]entity.Record, error)
	PullMany(ctx context.Context, sess entity.Session, tables []entity.Table, since int64) (map[entity.Table][]entity.Record, error)
	PullDeleted(ctx context.Context, sess entity.Session, since int64) ([]entity.Tombstone, error)
}

// IconAssets resolves download URLs for the icons of a pack.
type IconAssets interface {
	IconAssets(ctx context.Context, sess entity.Session, packID string) ([]entity.IconAsset, error)
}

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address string
	auth    Authenticator
	sync    Syncer
	icons   IconAssets
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, auth Authenticator, sync Syncer, icons IconAssets, m *metrics.Metrics) *HTTPServer {
	if m == nil {
		m = metrics.New()
	}
	return &HTTPServer{
		address: a,
		logger:  logging.OrNop(l).With("module", "http_server"),
		auth:    auth,
		sync:    sync,
		icons:   icons,
		metrics: m,
	}
}

// Router builds the route table. /ping and /metrics are public; everything
// else requires a bearer token.
func (s *HTTPServer) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/ping", s.ping).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/session", s.session).Methods(http.MethodGet)
	api.HandleFunc("/sync/push/deleted", s.pushDeleted).Methods(http.MethodPost)
	api.HandleFunc("/sync/push/{table}", s.push).Methods(http.MethodPost)
	api.HandleFunc("/sync/pull/deleted", s.pullDeleted).Methods(http.MethodGet)
	api.HandleFunc("/sync/pull/{table}", s.pull).Methods(http.MethodGet)
	api.HandleFunc("/sync/pull", s.pullMany).Methods(http.MethodGet)
	api.HandleFunc("/sync/icon-packs/{id}/assets", s.iconAssets).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
