// Package server exposes document conversion over HTTP: single shot
// conversion of uploaded files plus an EPUB session mode where a book is
// uploaded once and read chapter by chapter with emphasis applied.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"brc/config"
	"brc/state"
	"brc/store"
)

type service struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
}

// Run starts the HTTP service and blocks until the context is canceled
// or the listener fails.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("server")

	addr := env.Cfg.Server.Address
	if l := cmd.String("listen"); l != "" {
		addr = l
	}

	st, err := store.Open(ctx, env.Cfg.Server.StorePath,
		time.Duration(env.Cfg.Server.SessionLifetimeMin)*time.Minute, log.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()
	go st.Run(ctx, time.Duration(env.Cfg.Server.SweepIntervalMin)*time.Minute)

	svc := &service{cfg: env.Cfg, log: log, store: st}

	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info("Serving", zap.String("address", addr))

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func (s *service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Route("/epub", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleInfo)
				r.Get("/chapter/{index}", s.handleChapter)
				r.Get("/download", s.handleDownload)
				r.Delete("/", s.handleDelete)
			})
		})
	})
	return r
}

func (s *service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
