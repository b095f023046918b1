package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peerwise/peerwise/internal/api"
	"github.com/peerwise/peerwise/internal/buildconfig"
	"github.com/peerwise/peerwise/internal/config"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/payment"
	"github.com/peerwise/peerwise/internal/reason"
	"github.com/peerwise/peerwise/internal/registry"
	"github.com/peerwise/peerwise/internal/tunnel"
	"github.com/peerwise/peerwise/internal/wallet"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := config.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// The directory works without a reasoner: discovery then falls
	// back to raw keyword scoring.
	var reasoner domain.Reasoner
	if config.ReasonerAPIKey() != "" || config.ReasonerProvider() == reason.ProviderMock {
		r, err := reason.NewClient(config.ReasonerProvider(), config.ReasonerAPIKey())
		if err != nil {
			logger.Fatal("failed to create reasoner", zap.Error(err))
		}
		reasoner = r
	} else {
		logger.Warn("no reasoner configured, discovery uses keyword scoring only")
	}

	payCfg := payment.Config{
		Enabled: config.PaymentEnabled(),
		Amount:  config.PaymentAmount(),
		Unit:    config.PaymentUnit(),
		Mints:   config.PaymentMints(),
	}
	var payWallet domain.Wallet
	if payCfg.Enabled {
		walletURL := config.WalletURL()
		if walletURL == "" {
			logger.Fatal("PEERWISE_WALLET_URL is required when payment is enabled")
		}
		payWallet = wallet.NewClient(walletURL, logger)
	}

	app, err := api.NewDirectoryApp(api.DirectoryConfig{
		RegistryPath: config.RegistryPath(),
		Registry: registry.Options{
			OfflineThreshold: config.OfflineThreshold(),
			SweepInterval:    config.OfflineSweepInterval(),
		},
		Payment:        payCfg,
		Wallet:         payWallet,
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, reasoner, logger)
	if err != nil {
		logger.Fatal("failed to start directory", zap.Error(err))
	}

	ctx := context.Background()

	transport := tunnel.NewTCPTransport(config.AdvertiseHost(), logger)
	manager := tunnel.NewManager(transport, tunnel.Options{}, logger)

	listener, err := manager.StartListener(ctx, app.Router, config.ServerHost(), config.SeedPath())
	if err != nil {
		logger.Fatal("failed to start listener", zap.Error(err))
	}
	logger.Info("directory serving",
		zap.String("version", buildconfig.Version()),
		zap.String("address", listener.Address))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down directory")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := listener.Stop(shutdownCtx); err != nil {
		logger.Error("listener shutdown failed", zap.Error(err))
	}
	app.Close()

	logger.Info("directory stopped")
}
