package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"domotica-bridge/internal/api"
	"domotica-bridge/internal/browser"
	"domotica-bridge/internal/clock/system"
	"domotica-bridge/internal/config"
	"domotica-bridge/internal/events"
	"domotica-bridge/internal/events/sinks"
	"domotica-bridge/internal/intake"
	"domotica-bridge/internal/journal"
	"domotica-bridge/internal/logging"
	"domotica-bridge/internal/metrics"
	"domotica-bridge/internal/probe"
	"domotica-bridge/internal/service"
	"domotica-bridge/internal/syncer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds := cfg.Credentials()

	var ready func() error
	if cfg.Probe.Enabled {
		p := probe.New(creds.BaseURL, creds.StepTimeout, logger)
		if err := p.Check(); err != nil {
			// Startup proceeds; /readyz keeps reporting the outage.
			logger.Warn("console not reachable at startup", zap.Error(err))
		}
		ready = p.Check
	}

	sinkList := []events.Sink{sinks.NewLog(logger), sinks.NewProm()}
	if cfg.DB.Enabled {
		j, err := journal.New(ctx, cfg.DB.DSN, logger)
		if err != nil {
			return err
		}
		sinkList = append(sinkList, sinks.NewStore(j))
	}
	hub := events.NewHub(events.Config{
		BufferSize:       cfg.Events.Buffer,
		SubscriberBuffer: cfg.Events.SubscriberBuffer,
		Logger:           logger,
	}, sinkList...)

	sess := browser.New(browser.Config{
		Headless:    cfg.Domotica.Headless,
		StepTimeout: creds.StepTimeout,
	}, logger)
	svc := service.New(sess, creds, cfg.RetryPolicy(), logger)

	sync := syncer.New(svc, hub, system.New(), cfg.SyncInterval(), logger)
	if cfg.Sync.Enabled {
		go func() {
			if err := sync.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sync loop stopped", zap.Error(err))
			}
		}()
	}

	if cfg.RabbitMQ.Enabled {
		consumer := intake.New(intake.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		}, svc, sync, logger)
		if err := consumer.Connect(); err != nil {
			return err
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("intake stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(svc, hub, ready, api.Config{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutS) * time.Second,
		AuthEnabled:    cfg.Auth.Enabled,
		APIKey:         cfg.Auth.APIKey,
	}, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	logger.Info("bridge listening",
		zap.Int("port", cfg.Server.Port),
		zap.String("console", creds.BaseURL),
		zap.Bool("sync", cfg.Sync.Enabled),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("hub close", zap.Error(err))
	}
	svc.Close()
	return nil
}
