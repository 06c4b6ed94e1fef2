package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/api"
	"github.com/sells-group/school-risk/internal/layers"
)

var (
	servePort    int
	serveFromDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		analyzer, err := newAnalyzer()
		if err != nil {
			return err
		}
		reg, err := newRegistry(serveFromDir)
		if err != nil {
			return err
		}
		var cache layers.Cache
		if serveFromDir == "" {
			cache = st
		}
		holder := layers.NewHolder(newLoader(reg, cache))

		// Initial load in the background; analysis answers 503 until it lands.
		go func() {
			if err := holder.Refresh(ctx, layers.LoadOpts{}); err != nil {
				zap.L().Error("initial layer load failed", zap.Error(err))
			}
		}()

		server := api.NewServer(analyzer, holder, st, api.Options{
			Limits: api.Limits{
				MinTotalRadiusKm: cfg.Analysis.MinTotalRadiusKm,
				MaxTotalRadiusKm: cfg.Analysis.MaxTotalRadiusKm,
				MinZoneWidthKm:   cfg.Analysis.MinZoneWidthKm,
				MaxZoneWidthKm:   cfg.Analysis.MaxZoneWidthKm,
			},
			Defaults:       defaultZoneConfig(),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			BaseContext:    ctx,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port), zap.Int("layers", reg.Len()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveFromDir, "from-dir", "", "serve layers from local files in this directory")
	rootCmd.AddCommand(serveCmd)
}
