package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonny/chatbridge/internal/adapter/inbound/groupme"
	"github.com/jonny/chatbridge/internal/adapter/inbound/slack"
	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook"
	"github.com/jonny/chatbridge/internal/adapter/inbound/wechat"
	"github.com/jonny/chatbridge/internal/config"
	"github.com/jonny/chatbridge/internal/domain/port/inbound"
	"github.com/jonny/chatbridge/internal/domain/service"
	"github.com/jonny/chatbridge/internal/logging"
	"github.com/jonny/chatbridge/pkg/health"
	"github.com/jonny/chatbridge/pkg/version"
)

var (
	configPath string
	envPath    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run every enabled adapter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envPath, err)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logs, err := logging.NewFactory(cfg.Logging)
		if err != nil {
			return err
		}
		logger := logs.Logger()
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logs)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	serveCmd.Flags().StringVar(&envPath, "env-file", ".env", "dotenv file loaded before the config; ignored when missing")
	rootCmd.AddCommand(serveCmd)
}

// connectedAdapter is satisfied by every adapter in this module.
type connectedAdapter interface {
	inbound.Adapter
	Connected() bool
}

func serve(ctx context.Context, cfg *config.Config, logs *logging.Factory) error {
	logger := logs.Logger().With("component", "cmd.serve")

	adapters, err := buildAdapters(cfg, logs)
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		return errors.New("no adapter enabled")
	}

	hub := service.NewHub(logger)
	for _, a := range adapters {
		if err := hub.Register(a); err != nil {
			return err
		}
	}
	checker := readiness(adapters)

	shared := webhook.NewServer(webhook.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit:    cfg.Webhook.RateLimit,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	}, sharedMux(adapters, checker, logger), logger)

	if err := shared.Listen(); err != nil {
		return fmt.Errorf("starting shared server: %w", err)
	}
	logger.Info("shared server listening", "addr", shared.Addr())

	statuses, err := hub.ConnectAll(ctx)
	if err != nil {
		shutdown(cfg, hub, shared, logger)
		return err
	}
	for _, s := range statuses {
		logger.Info("adapter connected", "service_id", s.ServiceID)
	}

	stream, err := hub.Listen(ctx)
	if err != nil {
		shutdown(cfg, hub, shared, logger)
		return err
	}

	logger.Info("chatbridge started", "version", version.String(), "adapters", len(adapters))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for env := range stream {
			a := env.Activity
			logger.Info("activity",
				"service", env.ServiceName,
				"service_id", env.ServiceID,
				"actor", a.Actor.ID,
				"target", a.Target.ID,
				"object_type", a.Object.Type,
			)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdown(cfg, hub, shared, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("chatbridge stopped")
	return nil
}

func shutdown(cfg *config.Config, hub *service.Hub, shared *webhook.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := hub.DisconnectAll(ctx); err != nil {
		logger.Error("disconnecting adapters", "error", err)
	}
	if err := shared.Close(ctx); err != nil {
		logger.Error("closing shared server", "error", err)
	}
}

// readiness reports unhealthy while any adapter is disconnected.
func readiness(adapters []connectedAdapter) *health.Checker {
	checker := health.NewChecker()
	for _, a := range adapters {
		checker.Register(a.ServiceName(), func(context.Context) error {
			if !a.Connected() {
				return fmt.Errorf("%s not connected", a.ServiceID())
			}
			return nil
		})
	}
	return checker
}

// sharedMux serves probes and mounts every adapter router that has no
// webhook server of its own under /<service>/.
func sharedMux(adapters []connectedAdapter, checker *health.Checker, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())

	for _, a := range adapters {
		router := a.Router()
		if router == nil {
			continue
		}
		prefix := "/" + a.ServiceName()
		mux.Handle(prefix+"/", http.StripPrefix(prefix, router))
		logger.Info("mounted adapter routes", "service", a.ServiceName(), "prefix", prefix+"/")
	}
	return mux
}

func buildAdapters(cfg *config.Config, logs *logging.Factory) ([]connectedAdapter, error) {
	var adapters []connectedAdapter

	if cfg.GroupMe.Enabled {
		logger, err := logs.ForAdapter(cfg.GroupMe.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("groupme: %w", err)
		}
		a, err := groupme.New(groupme.Config{
			ServiceID:   cfg.GroupMe.ServiceID,
			Token:       cfg.GroupMe.Token,
			TokenSecret: cfg.GroupMe.TokenSecret,
			Username:    cfg.GroupMe.Username,
			HTTP:        transportConfig(cfg, cfg.GroupMe.HTTP),
			CacheTTL:    cfg.GroupMe.CacheTTL,
			APIBaseURL:  cfg.GroupMe.APIBaseURL,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if cfg.WeChat.Enabled {
		logger, err := logs.ForAdapter(cfg.WeChat.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("wechat: %w", err)
		}
		a, err := wechat.New(wechat.Config{
			ServiceID:  cfg.WeChat.ServiceID,
			AppID:      cfg.WeChat.AppID,
			AppSecret:  cfg.WeChat.AppSecret,
			HTTP:       transportConfig(cfg, cfg.WeChat.HTTP),
			TempDir:    cfg.WeChat.TempDir,
			APIBaseURL: cfg.WeChat.APIBaseURL,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if cfg.Slack.Enabled {
		logger, err := logs.ForAdapter(cfg.Slack.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("slack: %w", err)
		}
		a, err := slack.New(slack.Config{
			ServiceID:     cfg.Slack.ServiceID,
			BotToken:      cfg.Slack.BotToken,
			SigningSecret: cfg.Slack.SigningSecret,
			BotUserID:     cfg.Slack.BotUserID,
			HTTP:          transportConfig(cfg, cfg.Slack.HTTP),
			CacheTTL:      cfg.Slack.CacheTTL,
			APIBaseURL:    cfg.Slack.APIBaseURL,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	return adapters, nil
}

// transportConfig returns nil when the adapter should mount on the shared mux.
func transportConfig(cfg *config.Config, hc *config.HTTPConfig) *webhook.ServerConfig {
	if hc == nil {
		return nil
	}
	return &webhook.ServerConfig{
		Host:         hc.Host,
		Port:         hc.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit:    cfg.Webhook.RateLimit,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	}
}
