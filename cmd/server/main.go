package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/callbridge/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/callbridge/internal/adapter/driven/provisioning/chime"
	"github.com/Wyydra/callbridge/internal/adapter/driven/provisioning/memory"
	handler "github.com/Wyydra/callbridge/internal/adapter/driving/http"
	"github.com/Wyydra/callbridge/internal/config"
	"github.com/Wyydra/callbridge/internal/core/port"
	"github.com/Wyydra/callbridge/internal/core/service"
	"github.com/Wyydra/callbridge/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (default ./callbridge.yaml)")
	flag.Parse()

	loader := config.NewLoader(*configFile)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Setup(os.Stdout, cfg.Log.Format, cfg.Log.Level)

	if loader.Watch(func(c *config.Config) { logging.SetLevel(c.Log.Level) }) {
		log.Info().Msg("Watching config file for log level changes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provisioner, err := newProvisioner(ctx, cfg.Provisioning)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up provisioning")
	}

	hub := ws.NewHub()
	router := service.NewRouter(hub, service.WithFirstAcceptWins(cfg.Routing.FirstAcceptWins))
	meetings := service.NewMeetingService(provisioner, cfg.Provisioning.DefaultMeetingID)

	h := handler.NewHandler(router, meetings, hub, handler.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     cfg.Transport.SendBuffer,
		MaxMessageSize: cfg.Transport.MaxMessageSize,
		WriteWait:      cfg.Transport.WriteWait,
		PongWait:       cfg.Transport.PongWait,
		PingPeriod:     cfg.Transport.PingPeriod,
	})

	go hub.Run()
	if cfg.Stats.Interval > 0 {
		go router.ReportStats(ctx, cfg.Stats.Interval)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: h.NewRouter(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Address).Str("provider", cfg.Provisioning.Provider).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	log.Info().Msg("Server exited")
}

func newProvisioner(ctx context.Context, cfg config.ProvisioningConfig) (port.Provisioner, error) {
	if cfg.Provider == "chime" {
		p, err := chime.NewFromEnv(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return memory.NewProvisioner(cfg.Region), nil
}
