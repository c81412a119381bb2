// Command entgraphd is the process entrypoint: it loads configuration,
// wires the storage, authorization, and service layers, and serves the
// httpapi transport until signaled to stop.
//
// Grounded on bundoc-server/main.go's shape (flag overrides, signal-driven
// graceful shutdown with a bounded drain timeout) generalized to this
// module's config.Load/logging.Init/pool.Pool stack in place of bundoc's
// flag-only, log.Printf-only startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kartikbazzad/entgraph/authz"
	"github.com/kartikbazzad/entgraph/config"
	"github.com/kartikbazzad/entgraph/graph"
	"github.com/kartikbazzad/entgraph/jwtverifier"
	"github.com/kartikbazzad/entgraph/logging"
	"github.com/kartikbazzad/entgraph/pool"
	"github.com/kartikbazzad/entgraph/schema"
	"github.com/kartikbazzad/entgraph/service"
	"github.com/kartikbazzad/entgraph/transport/httpapi"
)

func main() {
	os.Exit(run())
}

// run builds and serves the process, returning the process exit code so
// main can stay a one-line os.Exit call.
func run() int {
	configFlag := flag.String("config-prefix", "ENT", "prefix for environment-variable configuration (e.g. ENT_SERVER_PORT)")
	devMode := flag.Bool("dev", false, "accept any non-empty bearer token instead of verifying RS256 signatures")
	flag.Parse()

	cfg := config.Default()
	if err := config.Load(*configFlag, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "entgraphd: load config: %v\n", err)
		return 1
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Get()

	verifier, err := buildVerifier(cfg, *devMode)
	if err != nil {
		log.Error("startup failed", "stage", "jwt", "error", err)
		return 1
	}

	ctx, cancelStartup := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancelStartup()

	dbPool, err := pool.New(ctx, cfg.Database.URL, pool.Options{
		MinSize:        1,
		MaxSize:        cfg.Database.MaxConnections,
		IdleTimeout:    5 * time.Minute,
		HealthInterval: 30 * time.Second,
	})
	if err != nil {
		log.Error("startup failed", "stage", "database", "error", err)
		return 1
	}
	defer dbPool.Close()

	conn, err := dbPool.Acquire(ctx)
	if err != nil {
		log.Error("startup failed", "stage", "database acquire", "error", err)
		return 1
	}

	store := graph.NewStore(conn.Engine())
	schemas := schema.NewRegistry(conn.Engine())
	if err := schemas.Load(ctx); err != nil {
		log.Error("startup failed", "stage", "schema load", "error", err)
		return 1
	}
	gate := authz.NewGate(conn.Engine())

	graphSvc := service.NewGraphService(verifier, store, schemas, gate)
	schemaSvc := service.NewSchemaService(verifier, schemas)
	handlers := httpapi.NewHandlers(graphSvc, schemaSvc)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      withCorrelationID(handlers.Mux()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("entgraphd starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", "error", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return 1
	}
	if err := dbPool.Release(conn); err != nil {
		log.Error("release database connection", "error", err)
	}

	log.Info("entgraphd stopped")
	return 0
}

// buildVerifier loads the configured RS256 public key, or falls back to a
// verifier that accepts any non-empty bearer token when devMode is set and
// no key is configured, matching the way local development runs without a
// signing authority available.
func buildVerifier(cfg config.Config, devMode bool) (service.TokenVerifier, error) {
	if cfg.JWT.PublicKeyPath == "" {
		if devMode {
			return jwtverifier.Static{Principal: "dev"}, nil
		}
		return nil, fmt.Errorf("jwt.public_key_path is required unless -dev is set")
	}
	return jwtverifier.New(cfg.JWT.PublicKeyPath, cfg.JWT.Issuer)
}

// withCorrelationID assigns a fresh request id to every inbound request
// before it reaches the mux, so every log line service methods emit through
// logging.FromContext can be joined back to one HTTP request.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := logging.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
