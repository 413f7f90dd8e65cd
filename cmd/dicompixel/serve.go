package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrsinham/dicompixel/internal/audit"
	"github.com/mrsinham/dicompixel/internal/cache"
	"github.com/mrsinham/dicompixel/internal/config"
	"github.com/mrsinham/dicompixel/internal/metrics"
	"github.com/mrsinham/dicompixel/internal/server"
	"github.com/mrsinham/dicompixel/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("dicompixel serve", flag.ContinueOnError)
	configFile := fs.String("config", "", "Load configuration from YAML file")
	port := fs.Int("port", 0, "Listen port (overrides server.port)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", version).Msg("Starting dicompixel server")

	ctx := context.Background()
	var opts []server.Option

	if cfg.Cache.Enabled {
		c, check, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()
		opts = append(opts, server.WithCache(c))
		if check != nil {
			opts = append(opts, server.WithCheck("redis", check))
		}
	} else {
		log.Info().Msg("Result cache disabled")
	}

	if cfg.Database.Enabled {
		db, err := audit.Connect(audit.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			LogLevel: cfg.Database.LogLevel,
		})
		if err != nil {
			return err
		}
		defer closeDB(db)
		repo := audit.NewRepository(db)
		opts = append(opts,
			server.WithRecorder(repo),
			server.WithHistory(repo),
			server.WithCheck("database", func(ctx context.Context) error { return audit.Ping(ctx, db) }),
		)
		log.Info().Str("dbname", cfg.Database.DBName).Msg("Audit log enabled")
	}

	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(metrics.New(prometheus.DefaultRegisterer), promhttp.Handler()))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("output_root", cfg.Output.Root).Msg("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

// openCache builds the configured cache backend. The returned check is nil
// for the in-process cache.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, server.Check, error) {
	if cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		rc, err := cache.NewRedisCache(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info().Str("addr", addr).Dur("ttl", cfg.Cache.TTL).Msg("Redis cache initialized")
		return rc, rc.Ping, nil
	}

	log.Info().Dur("ttl", cfg.Cache.TTL).Msg("Memory cache initialized")
	return cache.NewMemoryCache(), nil, nil
}

func closeDB(db *gorm.DB) {
	if err := audit.Close(db); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}
