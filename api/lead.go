// Package handler is the serverless entry point for the lead endpoint.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"lead-intake/pkg/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/server"
	"lead-intake/pkg/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	router   http.Handler
)

func setup() (http.Handler, error) {
	_ = godotenv.Load()
	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel)

	// no shutdown hook runs in a serverless instance; spans are flushed per request
	if _, err := telemetry.Init(context.Background(), cfg.Tracing); err != nil {
		return nil, fmt.Errorf("error initializing tracing: %w", err)
	}
	return server.New(cfg)
}

// Handler serves /lead and /api/lead as a single function. The router is
// built on the first invocation and reused while the instance stays warm.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		router, initErr = setup()
	})

	if initErr != nil {
		logger.Error("Error initializing handler: %v", initErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"Server error"}`))
		return
	}

	router.ServeHTTP(w, r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := telemetry.ForceFlush(ctx); err != nil {
		logger.Warn("Error flushing spans: %v", err)
	}
}
