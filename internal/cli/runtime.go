package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/yolodolo42/pokemint/internal/config"
	"github.com/yolodolo42/pokemint/internal/dapp"
	"github.com/yolodolo42/pokemint/internal/logging"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

// runtime is a started application for one command.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *dapp.App
	close  []func()
}

type runtimeOptions struct {
	// prompter defaults to promptFor(cfg).
	prompter func(cfg *config.Config) wallet.Prompter
	// logger overrides the configured logger.
	logger func(cfg *config.Config) (*zap.Logger, func(), error)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// startRuntime loads configuration, builds the application and runs its
// initial detection and leaderboard load.
func startRuntime(cmd *cobra.Command, opts runtimeOptions) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	r := &runtime{cfg: cfg}
	if opts.logger != nil {
		logger, closeFn, err := opts.logger(cfg)
		if err != nil {
			return nil, err
		}
		r.logger = logger
		r.close = append(r.close, closeFn)
	} else {
		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		r.logger = logger
	}

	if cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		startMetricsServer(metricsCtx, cfg.MetricsAddr, r.logger)
		r.close = append(r.close, cancel)
	}

	prompter := promptFor(cfg)
	if opts.prompter != nil {
		prompter = opts.prompter(cfg)
	}

	app, err := dapp.New(ctx, dapp.Options{
		Config:   cfg,
		Prompter: prompter,
		Logger:   r.logger,
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.app = app
	if err := app.Start(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *runtime) Close() {
	if r.app != nil {
		r.app.Close()
	}
	_ = r.logger.Sync()
	for i := len(r.close) - 1; i >= 0; i-- {
		r.close[i]()
	}
}

// promptFor picks how the wallet asks the user: a configured password means
// unattended operation, otherwise the terminal is used when there is one.
func promptFor(cfg *config.Config) wallet.Prompter {
	if cfg.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		p := wallet.NewTerminalPrompter()
		if cfg.Yes {
			return preapproved{p}
		}
		return p
	}
	return wallet.StaticPrompter{Password: cfg.Password, AutoApprove: cfg.Yes}
}

// preapproved skips transaction approval; account unlock still prompts.
type preapproved struct {
	wallet.Prompter
}

func (preapproved) ApproveTransaction(ctx context.Context, req wallet.ApprovalRequest) error {
	return nil
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
