package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/yamca/yamca/internal/broker"
	"github.com/yamca/yamca/internal/config"
	"github.com/yamca/yamca/internal/logging"
)

func main() {
	configPath := flag.String("config", "yamca.yaml", "Path to config file")
	host := flag.String("host", "", "Override listen host")
	port := flag.Int("port", 0, "Override listen port")
	token := flag.String("token", "", "Override auth token")
	genToken := flag.Bool("gen-token", false, "Print a random auth token and exit")
	level := flag.String("log-level", "", "Override log level")
	flag.Parse()

	if *genToken {
		t, err := config.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(t)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Broker.Host = *host
	}
	if *port > 0 {
		cfg.Broker.Port = *port
	}
	if *token != "" {
		cfg.Broker.AuthToken = *token
	}
	if *level != "" {
		cfg.Log.Level = *level
	}

	if err := logging.Setup(os.Stderr, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.Broker.AuthToken == "" {
		log.Warn().Msg("no auth token configured, any client may connect")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := broker.NewServer(cfg.Broker)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal().Err(err).Msg("broker error")
	}
}
