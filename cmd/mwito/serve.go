package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mwito/internal/awsauth"
	"github.com/jkaninda/mwito/internal/chat"
	"github.com/jkaninda/mwito/internal/config"
	"github.com/jkaninda/mwito/internal/gateway/httpapi"
	"github.com/jkaninda/mwito/internal/gateway/ws"
	"github.com/jkaninda/mwito/internal/llm/bedrock"
	"github.com/jkaninda/mwito/internal/observability"
	"github.com/jkaninda/mwito/internal/ratelimit"
	goutils "github.com/jkaninda/go-utils"
)

var (
	serveConfigPath string
	serveListenAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `mwito --config path` and `mwito serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&serveListenAddr, "listen", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runServe boots the chat server. Credential resolution happens before
// anything listens: a strategy that fails to validate or dispatch stops
// the process with a non-zero exit, and recovery requires a restart.
func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfgPath := goutils.Env("MWITO_CONFIG", serveConfigPath)
	if cfgPath == config.DefaultConfigPath() {
		// The default path is optional: a container deployment runs on
		// environment variables alone. An explicitly given path is not.
		if _, err := os.Stat(cfgPath); err != nil {
			cfgPath = ""
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if serveListenAddr != "" {
		cfg.Server.ListenAddr = serveListenAddr
	}

	// Resolve the AWS credential strategy from the environment snapshot.
	env := awsauth.EnvironFromOS()
	strategy, err := awsauth.ParseStrategy(env[awsauth.EnvLoginStrategy])
	if err != nil {
		return err
	}
	strategyCfg, err := awsauth.LoadStrategyConfig(strategy, env)
	if err != nil {
		return err
	}
	provider, err := awsauth.Resolve(strategy, strategyCfg)
	if err != nil {
		return err
	}
	logger.Info("aws credential strategy resolved",
		slog.String("strategy", string(provider.Strategy())),
		slog.String("region", strategyCfg.Region),
	)

	// Observability (optional).
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return err
	}

	// Bedrock model client.
	var modelOpts []bedrock.Option
	if cfg.Bedrock.CrossRegion {
		modelOpts = append(modelOpts, bedrock.WithCrossRegion())
	}
	if cfg.Bedrock.Thinking != nil {
		modelOpts = append(modelOpts, bedrock.WithThinking(cfg.Bedrock.Thinking.BudgetTokens))
	}
	model := bedrock.NewClient(provider.Config(), cfg.Bedrock.ModelID, logger, modelOpts...)
	logger.Info("bedrock client initialized", slog.String("model_id", model.ModelID()))

	// Chat service over the shared in-memory history store.
	chatOpts := chat.Options{
		SystemPrompt: cfg.Bedrock.SystemPrompt,
		MaxHistory:   cfg.History.WindowSize(),
		Metrics:      obs.MetricsOrNil(),
	}
	if inf := cfg.Bedrock.Inference; inf != nil {
		chatOpts.MaxTokens = inf.MaxTokens
		chatOpts.Temperature = inf.Temperature
	}
	svc := chat.NewService(model, chat.NewInMemoryHistoryStore(), logger, chatOpts)

	// Per-user rate limiter (optional).
	var limiter *ratelimit.Limiter
	if rl := cfg.Server.RateLimit; rl != nil {
		limiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: rl.RequestsPerMinute,
			Burst:             rl.Burst,
		})
	}

	// HTTP gateway.
	gwCfg := httpapi.Config{
		ListenAddr: cfg.Server.ListenAddr,
		EnableDocs: cfg.Server.EnableDocs,
		APIKeys:    cfg.Server.APIKeys,
		Metrics:    obs.MetricsOrNil(),
	}
	if m := obs.MetricsOrNil(); m != nil {
		gwCfg.MetricsRegistry = m.Registry
		if cfg.Observability != nil && cfg.Observability.Metrics != nil {
			gwCfg.MetricsPath = cfg.Observability.Metrics.Path
		}
	}
	if t := obs.TracerOrNil(); t != nil {
		gwCfg.Tracer = t.Tracer()
	}

	gw := httpapi.NewGateway(gwCfg, svc, limiter, logger).WithSSE(cfg.Server.EnableSSE)

	// WebSocket chat endpoint (optional), mounted on the same listener.
	if wsCfg := cfg.Server.WebSocket; wsCfg != nil && wsCfg.Enabled {
		wsServer := ws.NewServer(svc, wsCfg, logger)
		gw.WithHandler(wsCfg.WSPath(), wsServer.Handler())
		logger.Debug("websocket chat endpoint mounted", slog.String("path", wsCfg.WSPath()))
	}

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- gw.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
		}
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("stopping gateway", slog.String("error", err.Error()))
	}
	obs.Shutdown(shutdownCtx)

	return nil
}
