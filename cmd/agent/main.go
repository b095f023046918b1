package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peerwise/peerwise/internal/api"
	"github.com/peerwise/peerwise/internal/artifact"
	"github.com/peerwise/peerwise/internal/buildconfig"
	"github.com/peerwise/peerwise/internal/client"
	"github.com/peerwise/peerwise/internal/config"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/payment"
	"github.com/peerwise/peerwise/internal/reason"
	"github.com/peerwise/peerwise/internal/retrieval"
	"github.com/peerwise/peerwise/internal/session"
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

	agentID := config.AgentID()
	if agentID == "" {
		logger.Fatal("PEERWISE_AGENT_ID is required")
	}

	reasoner, err := reason.NewClient(config.ReasonerProvider(), config.ReasonerAPIKey())
	if err != nil {
		logger.Fatal("failed to create reasoner", zap.Error(err))
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

	app := api.NewAgentApp(api.AgentConfig{
		AgentID:      agentID,
		DisplayName:  config.DisplayName(),
		ArtifactsDir: config.ArtifactsDir(),
		IndexPath:    config.IndexPath(),
		Payment:      payCfg,
		Wallet:       payWallet,
		SessionTTL: session.Options{
			TTL:             config.SessionTTL(),
			CleanupInterval: config.SessionCleanupInterval(),
		},
		RetrievalOpts:  retrieval.Options{},
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, reasoner, logger)

	ctx := context.Background()

	transport := tunnel.NewTCPTransport(config.AdvertiseHost(), logger)
	manager := tunnel.NewManager(transport, tunnel.Options{}, logger)

	listener, err := manager.StartListener(ctx, app.Router, config.ServerHost(), config.SeedPath())
	if err != nil {
		logger.Fatal("failed to start listener", zap.Error(err))
	}
	logger.Info("agent serving",
		zap.String("agent_id", agentID),
		zap.String("version", buildconfig.Version()),
		zap.String("address", listener.Address))

	// Announce to the directory when one is configured; consultations
	// work without it, discovery does not.
	var dirClient *client.DirectoryClient
	var heartbeater *client.Heartbeater
	if dirURL := config.DirectoryURL(); dirURL != "" {
		dirClient = client.NewDirectoryClient(manager, logger)
		if err := dirClient.Connect(ctx, dirURL); err != nil {
			logger.Fatal("failed to connect to directory", zap.Error(err))
		}

		profile := domain.AgentProfile{
			AgentID:       agentID,
			DisplayName:   config.DisplayName(),
			ConnectionKey: listener.Address,
		}
		if idx, err := artifact.LoadIndex(config.IndexPath()); err == nil {
			profile.ExpertiseIndex = idx
		} else {
			logger.Warn("registering without expertise index", zap.Error(err))
		}
		if payCfg.Enabled {
			profile.Payment = &domain.PaymentTerms{Amount: payCfg.Amount, Unit: payCfg.Unit}
		}

		if err := dirClient.Register(ctx, profile); err != nil {
			logger.Fatal("failed to register with directory", zap.Error(err))
		}
		logger.Info("registered with directory", zap.String("directory", dirURL))

		heartbeater = client.StartHeartbeater(dirClient, agentID, config.HeartbeatInterval(), logger)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down agent")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if heartbeater != nil {
		heartbeater.Stop(shutdownCtx)
	}
	if dirClient != nil {
		_ = dirClient.Disconnect(shutdownCtx)
	}
	if err := listener.Stop(shutdownCtx); err != nil {
		logger.Error("listener shutdown failed", zap.Error(err))
	}
	app.Close()

	logger.Info("agent stopped")
}
