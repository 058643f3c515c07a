// Package imageserver implements spec.md §4.5: an unauthenticated static
// HTTP server exposing firmware images at /images/<update-id>/<file>.
// Grounded on the teacher's internal/cloudhub/server/http/server.go
// listen/shutdown shape, routed with gorilla/mux per the teacher's
// go.mod dependency.
package imageserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	"github.com/nimbic-io/otahub/pkg/options"
)

// Server serves firmware binaries out of a directory tree laid out as
// <ImagePath>/<update-id>/<file>, the same relative path as the File
// field of the OTAPackageFileInfo devices are handed, served under the
// /images/ prefix.
type Server struct {
	log    logr.Logger
	opts   *options.OtaOptions
	server *http.Server
}

func New(opts *options.OtaOptions, log logr.Logger) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	fileServer := http.FileServer(http.Dir(opts.ImagePath))
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", noDirListing(fileServer)))

	return &Server{
		log:  log,
		opts: opts,
		server: &http.Server{
			Addr:    ":" + strconv.Itoa(opts.HTTPPort),
			Handler: router,
		},
	}
}

// noDirListing rejects requests resolving to a directory, since the
// embedded catalog never expects devices to browse update folders —
// spec.md §4.5 calls for a standard 404, not a directory index.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) == 0 || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP listener and blocks until ctx is cancelled, using
// the same start/select/shutdown shape as the teacher's cloudhub HTTP
// server and the admin adapter.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("image server listening", "addr", s.server.Addr, "path", s.opts.ImagePath)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
