package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ecosort/smoke/internal/logging"
	"github.com/ecosort/smoke/internal/mockapi"
	"github.com/ecosort/smoke/internal/version"
)

func main() {
	lg := logging.New("mockapi")
	addr := os.Getenv("MOCKAPI_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	origins := []string{"*"}
	if v := os.Getenv("MOCKAPI_CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	api := mockapi.New(lg)
	r := chi.NewRouter()
	// lets a browser frontend on another port point at the mock
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Mount("/api", api.Router())
	r.Handle("/metrics", mockapi.PromHandler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		lg.Info("listening", slog.String("addr", addr), slog.String("version", version.Describe()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()
	<-done
	lg.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
