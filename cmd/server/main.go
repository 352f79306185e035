package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardrockay/followup-engine/internal/api"
	"github.com/wardrockay/followup-engine/internal/composerclient"
	"github.com/wardrockay/followup-engine/internal/config"
	"github.com/wardrockay/followup-engine/internal/crmclient"
	"github.com/wardrockay/followup-engine/internal/repository/dynamostore"
	"github.com/wardrockay/followup-engine/internal/resilience"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "followup-engine").Logger()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		logger.Fatal().Err(err).Msg("pre-flight port check failed")
	}
	logger.Info().Int("port", port).Msg("pre-flight check passed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := dynamostore.New(ctx, dynamostore.Config{
		DraftsTable:    cfg.Storage.DraftsTable,
		FollowupsTable: cfg.Storage.FollowupsTable,
		Region:         cfg.Storage.AWSRegion,
		Profile:        cfg.Storage.GetAWSProfile(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initializing DynamoDB store")
	}

	breakers := resilience.NewRegistry(logger)
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerMinute: cfg.Followup.RateLimitPerMinute,
		BurstSize:         cfg.Followup.RateLimitBurst,
	})

	crmClient := crmclient.NewClient(cfg.Followup.CRMURL, cfg.Followup.CRMSecret)
	composerClient := composerclient.NewClient(cfg.Followup.MailWriterURL)

	service := followup.New(store, crmClient, composerClient, breakers, logger)

	server := api.NewServer(cfg.Server, service, store, breakers, limiter, logger)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	logger.Info().Msg("followup engine ready")

	<-done
	logger.Info().Msg("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("server stopped")
}
