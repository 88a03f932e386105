package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"document-gateway/internal/log"
	"document-gateway/internal/registrystub"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Serviço de registro falso para rodar o demo localmente:
//
//	LISTEN_ADDR=:8081 AUTH_TOKEN=dev go run ./cmd/registry-stub
//	API_URL=http://localhost:8081/api/v3/lk/documents/create AUTH_TOKEN=dev go run ./cmd/demo
func main() {
	_ = godotenv.Load()

	logger, err := log.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	stub := registrystub.New(
		registrystub.WithAuthToken(os.Getenv("AUTH_TOKEN")),
		registrystub.WithLogger(logger.Named("registry")))
	// FAIL_FIRST força as primeiras N respostas a 500, para ver o descarte no demo
	if n, err := strconv.Atoi(os.Getenv("FAIL_FIRST")); err == nil && n > 0 {
		stub.FailNext(n)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           stub,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("registry stub listening",
		zap.String("addr", addr),
		zap.String("path", registrystub.CreatePath),
		zap.Bool("auth", os.Getenv("AUTH_TOKEN") != ""))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("registry stub stopped", zap.Int("received", len(stub.Received())))
}
