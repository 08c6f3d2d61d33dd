// Copyright 2025 The Uplink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uplinkhq/uplink/internal/composite"
	"github.com/uplinkhq/uplink/internal/config"
	"github.com/uplinkhq/uplink/internal/gateway"
	"github.com/uplinkhq/uplink/internal/log"
	"github.com/uplinkhq/uplink/internal/logstore"
	"github.com/uplinkhq/uplink/internal/mapping"
	"github.com/uplinkhq/uplink/internal/refdata"
	"github.com/uplinkhq/uplink/internal/server"
	"github.com/uplinkhq/uplink/internal/store"
	"github.com/uplinkhq/uplink/internal/transport"
)

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		catalogPath string
		addr        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if catalogPath != "" {
				cfg.Catalog.Path = catalogPath
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the daemon config file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the catalog file (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logCfg := log.FromEnv()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = log.Format(cfg.Log.Format)
	logger := log.New(logCfg)
	slog.SetDefault(logger)

	if cfg.Catalog.Path == "" {
		return fmt.Errorf("no catalog file configured (set catalog.path, UPLINK_CATALOG, or --catalog)")
	}
	catalogStore, err := store.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", slog.String("path", cfg.Catalog.Path))

	var invlog gateway.InvocationLogger
	var lister server.InvocationLister
	if !cfg.Storage.Disabled {
		invStore, err := logstore.New(logstore.Config{Path: cfg.Storage.InvocationDB})
		if err != nil {
			return fmt.Errorf("opening invocation log: %w", err)
		}
		defer invStore.Close()
		invlog = invStore
		lister = invStore
		logger.Info("invocation log opened", slog.String("path", cfg.Storage.InvocationDB))
	}

	executor := transport.NewHTTPExecutor(
		&http.Client{Timeout: cfg.Transport.DefaultTimeout},
		&cfg.Transport.Retry,
		transport.NewBreakerRegistry(cfg.Transport.Breaker),
		cfg.Transport.RateLimit,
		logger,
	)

	loader := &gateway.Loader{
		Integrations: catalogStore,
		Actions:      catalogStore,
		Connections:  catalogStore,
		Credentials:  catalogStore,
	}
	refcache := refdata.NewCache(catalogStore, cfg.Refdata.TTL)
	gw := gateway.New(loader, executor, mapping.New(nil), refcache, invlog, logger)
	tools := composite.NewHandler(catalogStore, catalogStore, gw, logger)
	api := server.New(gw, tools, lister, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
