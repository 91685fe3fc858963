package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"displayd/internal/config"
	"displayd/internal/dispatch"
	"displayd/internal/httpapi"
	"displayd/internal/renderer"
	"displayd/internal/source"
	"displayd/internal/st7789"
	"displayd/pkg/types"
)

func buildServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the display pipeline and control API",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "HTTP listen address (defaults DISPLAYD_ADDR or :8080)")
	cmd.Flags().String("spi-dev", "", "SPI port, e.g. SPI0.0 (defaults DISPLAYD_SPI_DEV; empty = log sink)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := cmd.Flags().GetString("spi-dev"); v != "" {
		cfg.SPIDev = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	cb, cleanup, err := buildSink(cfg, log)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	r, err := renderer.New(cfg, cb, log)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log)
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(r)}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("control api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	w, h := cfg.Width, cfg.Height
	log.Info().Int("width", w).Int("height", h).
		Int("min_fps", cfg.MinFPS).Int("max_fps", cfg.MaxFPS).
		Msg("pipeline starting")
	runErr := r.Run(ctx, source.NewPattern(w, h))

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := r.Close(); err != nil {
		log.Warn().Err(err).Msg("renderer close error")
	}
	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromEnv(), nil
	}
	return config.Load(path)
}

// buildSink returns the region transmit callback: the ST7789 panel when an
// SPI port is configured, otherwise a sink that just logs each write.
func buildSink(cfg config.Config, log zerolog.Logger) (dispatch.Callback, func(), error) {
	if cfg.SPIDev != "" {
		w, h := cfg.EffectiveSize()
		dev, err := st7789.Open(cfg.SPIDev, cfg.DCPin, cfg.ResetPin, int64(cfg.Baudrate), w, h, log)
		if err != nil {
			return nil, nil, err
		}
		return dev.Callback(), func() { dev.Close() }, nil
	}
	cb := func(rect types.Rect, data []byte, fingerprint uint64, prev *dispatch.Job) {
		prev.Wait()
		log.Debug().
			Int("x", rect.X).Int("y", rect.Y).
			Int("w", rect.W).Int("h", rect.H).
			Uint64("fingerprint", fingerprint).
			Msg("region write")
	}
	return cb, nil, nil
}
