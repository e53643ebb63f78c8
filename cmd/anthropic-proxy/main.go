// Command anthropic-proxy runs a protocol-translating HTTP proxy: it exposes
// the Anthropic Messages API and forwards each request to the configured
// upstream provider, translating to the OpenAI chat completions dialect when
// the upstream requires it.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/digitallysavvy/anthropic-proxy/internal/config"
	"github.com/digitallysavvy/anthropic-proxy/internal/httpapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.SetupExporter(ctx)
	if err != nil {
		log.Fatalf("anthropic-proxy: telemetry setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Printf("anthropic-proxy: telemetry shutdown error: %v", err)
		}
	}()

	cfg := config.Resolve()
	router := httpapi.NewRouter(cfg)

	addr := "127.0.0.1:" + config.Port()
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// No ReadTimeout/WriteTimeout: reasoning-model streams legitimately
		// run for minutes; the client controls cancellation instead.
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("anthropic-proxy: graceful shutdown error: %v", err)
		}
	}()

	log.Printf("anthropic-proxy: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("anthropic-proxy: server error: %v", err)
	}
}
