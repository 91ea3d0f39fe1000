// cmd/main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/gst-invoice-generator/pkg/config"
	"github.com/gst-invoice-generator/pkg/history"
	"github.com/gst-invoice-generator/pkg/logging"
	"github.com/gst-invoice-generator/pkg/server"
)

func main() {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	if err := newApp(run).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:  "gst-invoice",
		Usage: "serve the GST invoice form",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", EnvVars: []string{"INVOICE_CONFIG"}},
			&cli.StringFlag{Name: "host", Usage: "listen host", EnvVars: []string{"HOST"}},
			&cli.StringFlag{Name: "port", Usage: "listen port", EnvVars: []string{"PORT"}},
			&cli.StringFlag{Name: "log-level", Usage: "logrus level", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "database-url", Usage: "optional PostgreSQL mirror of the history log", EnvVars: []string{"DATABASE_URL"}},
		},
		Action: action,
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"host", &cfg.Host},
		{"port", &cfg.Port},
		{"log-level", &cfg.LogLevel},
		{"database-url", &cfg.DatabaseURL},
	}
	for _, o := range overrides {
		if c.IsSet(o.flag) {
			*o.dst = c.String(o.flag)
		}
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var opts []server.Option
	if cfg.DatabaseURL != "" {
		mirror, err := history.OpenPostgres(sigCtx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer mirror.Close()
		opts = append(opts, server.WithMirror(mirror))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(cfg, logger, opts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"addr": cfg.Addr()}).Info("invoice server listening")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	return nil
}
