package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ecosort/smoke/internal/client"
	"github.com/ecosort/smoke/internal/config"
	"github.com/ecosort/smoke/internal/logging"
)

func main() {
	lg := logging.New("healthcheck")
	cfg, err := config.Parse()
	if err != nil {
		lg.Error("config", slog.String("error", err.Error()))
		os.Exit(2)
	}
	c, err := client.New(cfg.BaseURL, client.WithHealthURL(cfg.HealthURL), client.WithLogger(lg))
	if err != nil {
		lg.Error("client", slog.String("error", err.Error()))
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Health(ctx)
	if err != nil {
		fmt.Printf("❌ Database connection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %s (database=%s, collections=%d)\n", res.Data.Message, res.Data.Database, len(res.Data.Collections))
	if res.Data.Status != "success" {
		os.Exit(1)
	}
	os.Exit(0)
}
