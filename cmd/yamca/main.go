package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/yamca/yamca/internal/client"
	"github.com/yamca/yamca/internal/config"
	"github.com/yamca/yamca/internal/logging"
	"github.com/yamca/yamca/internal/profile"
	"github.com/yamca/yamca/internal/session"
	"github.com/yamca/yamca/internal/tui/app"
)

func main() {
	configPath := flag.String("config", "yamca.yaml", "Path to config file")
	server := flag.String("server", "", "Broker address as host:port")
	token := flag.String("token", "", "Auth token (if the broker requires it)")
	profileName := flag.String("profile", "", "Profile to log in with (created if missing)")
	secure := flag.Bool("tls", false, "Connect with wss:// and https://")
	flag.Parse()

	if err := run(*configPath, *server, *token, *profileName, *secure); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, server, token, profileName string, secure bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if token != "" {
		cfg.Client.AuthToken = token
	}
	if profileName != "" {
		cfg.Client.Profile = profileName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ep := session.Endpoint{Host: cfg.Client.Host, Port: cfg.Client.Port}
	if server != "" {
		if ep, err = session.ParseEndpoint(server); err != nil {
			return err
		}
	}

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = logging.DefaultFile()
	}
	logFile, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	if err := logging.Setup(logFile, cfg.Log.Level); err != nil {
		return err
	}

	opts := session.DefaultOptions()
	opts.OpTimeout = cfg.Client.OpTimeout
	opts.MaxInFlight = cfg.Client.MaxInFlight
	opts.AutoListen = cfg.Client.AutoListen

	sess := session.New(client.Dialer{Token: cfg.Client.AuthToken, Secure: secure}, opts)
	defer sess.Reset()

	store := profile.NewFileStore(cfg.Client.ProfileDir)
	if err := sess.Configure(context.Background(), ep, cfg.Client.Profile, store); err != nil {
		return err
	}
	log.Info().Str("endpoint", ep.String()).Str("profiles", store.Dir()).Msg("yamca started")

	dir := client.ForEndpoint(ep, cfg.Client.AuthToken)
	if secure {
		dir = client.NewHTTPClient("https://"+ep.String(), cfg.Client.AuthToken)
	}

	m := app.New(sess, dir, app.Options{Timeout: opts.DialTimeout + opts.OpTimeout, MailboxSize: cfg.Client.MailboxSize})
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return nil
}
