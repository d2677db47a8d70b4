package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/redis/go-redis/v9"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/config"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/engine"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/notify"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/server"
)

type serveGlazedCommand struct {
	*cmds.CommandDescription
}

type serveSettings struct {
	Addr string `glazed.parameter:"addr"`
}

func newServeGlazedCommand() (cmds.Command, error) {
	return &serveGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"serve",
			cmds.WithShort("Run the monitoring engine and its JSON API"),
			cmds.WithLong("Start the tenant registry and serve the UI-facing API. "+
				"Configuration comes from the environment (SHIPBOT_* variables and an optional .env file)."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"addr",
					parameters.ParameterTypeString,
					parameters.WithHelp("Listen address (overrides SHIPBOT_ADDR)"),
					parameters.WithDefault(""),
				),
			),
		),
	}, nil
}

func (c *serveGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &serveSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if settings.Addr != "" {
		cfg.ListenAddr = settings.Addr
	}

	logger := log.New(os.Stdout, "shipbot ", log.LstdFlags)
	notifier, closeSinks, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	registry := engine.NewRegistry(cfg, notifier, logger)
	mux := http.NewServeMux()
	server.New(registry).Register(mux)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}
	registry.Shutdown()
	return nil
}

// buildNotifier wires the configured sinks; with none configured events are
// dropped silently.
func buildNotifier(cfg config.Settings, logger *log.Logger) (notify.Notifier, func(), error) {
	var sinks notify.Multi
	closeSinks := func() {}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL))
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		stream, err := notify.NewStream(rdb, cfg.EventTopic)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, stream)
		closeSinks = func() {
			_ = stream.Close()
			_ = rdb.Close()
		}
	}
	if len(sinks) == 0 {
		return notify.Discard{}, closeSinks, nil
	}
	return notify.LogFailures(sinks, logger), closeSinks, nil
}

type checkGlazedCommand struct {
	*cmds.CommandDescription
}

type checkSettings struct {
	Email    string `glazed.parameter:"email"`
	Password string `glazed.parameter:"password"`
	Watch    string `glazed.parameter:"watch"`
	MaxMiles int    `glazed.parameter:"max-miles"`
	Targets  string `glazed.parameter:"targets"`
}

func newCheckGlazedCommand() (cmds.Command, error) {
	return &checkGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"check",
			cmds.WithShort("Log in once and run a single check"),
			cmds.WithLong("Authenticate, list the draft catalog, and optionally resolve one draft "+
				"immediately instead of running the background schedule."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"email",
					parameters.ParameterTypeString,
					parameters.WithHelp("Login email (or SHIPBOT_EMAIL)"),
					parameters.WithDefault(""),
				),
				parameters.NewParameterDefinition(
					"password",
					parameters.ParameterTypeString,
					parameters.WithHelp("Login password (or SHIPBOT_PASSWORD)"),
					parameters.WithDefault(""),
				),
				parameters.NewParameterDefinition(
					"watch",
					parameters.ParameterTypeString,
					parameters.WithHelp("Creation stamp of a draft to resolve now"),
					parameters.WithDefault(""),
				),
				parameters.NewParameterDefinition(
					"max-miles",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Mile threshold override for the checked draft"),
					parameters.WithDefault(0),
				),
				parameters.NewParameterDefinition(
					"targets",
					parameters.ParameterTypeString,
					parameters.WithHelp("Comma-separated target warehouse tokens"),
					parameters.WithDefault(""),
				),
			),
		),
	}, nil
}

func (c *checkGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &checkSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	email := fallbackEnv(settings.Email, "SHIPBOT_EMAIL")
	password := fallbackEnv(settings.Password, "SHIPBOT_PASSWORD")
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "shipbot ", log.LstdFlags)
	registry := engine.NewRegistry(cfg, notify.Discard{}, logger)
	defer registry.Shutdown()
	tenant, err := registry.Attach(ctx, model.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	if settings.Watch == "" {
		drafts, err := tenant.Drafts(ctx)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			fmt.Printf("%s\t%s\t%s\t%s SKUs\t%s units\n", d.Created, d.Name, d.Origin, d.SKUs, d.Units)
		}
		return nil
	}

	if err := tenant.Enroll(ctx, settings.Watch, settings.MaxMiles, settings.Targets); err != nil {
		return err
	}
	tenant.RunCycle(ctx)
	for i := len(tenant.Logs()) - 1; i >= 0; i-- {
		fmt.Println(tenant.Logs()[i].String())
	}
	return nil
}

func fallbackEnv(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

// remoteQuerySpec declares one read-only command against a running serve
// instance.
type remoteQuerySpec struct {
	name     string
	short    string
	resource string
}

type remoteQueryCommand struct {
	*cmds.CommandDescription
	resource string
}

type remoteQuerySettings struct {
	Server string `glazed.parameter:"server"`
	Tenant string `glazed.parameter:"tenant"`
}

func newRemoteQueryCommand(spec remoteQuerySpec) (cmds.Command, error) {
	return &remoteQueryCommand{
		resource: spec.resource,
		CommandDescription: cmds.NewCommandDescription(
			spec.name,
			cmds.WithShort(spec.short),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"server",
					parameters.ParameterTypeString,
					parameters.WithHelp("Base URL of a running serve instance"),
					parameters.WithDefault("http://localhost:8088"),
				),
				parameters.NewParameterDefinition(
					"tenant",
					parameters.ParameterTypeString,
					parameters.WithHelp("Tenant id returned by session attach"),
					parameters.WithDefault(""),
				),
			),
		),
	}, nil
}

func newWatchlistGlazedCommand() (cmds.Command, error) {
	return newRemoteQueryCommand(remoteQuerySpec{
		name:     "watchlist",
		short:    "Print a tenant's watch entries",
		resource: "watchlist",
	})
}

func newAccountsGlazedCommand() (cmds.Command, error) {
	return newRemoteQueryCommand(remoteQuerySpec{
		name:     "accounts",
		short:    "Print a tenant's selectable accounts",
		resource: "accounts",
	})
}

func newHistoryGlazedCommand() (cmds.Command, error) {
	return newRemoteQueryCommand(remoteQuerySpec{
		name:     "history",
		short:    "Print a tenant's replication history",
		resource: "history",
	})
}

func (c *remoteQueryCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	settings := &remoteQuerySettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, settings); err != nil {
		return err
	}
	if settings.Tenant == "" {
		return errors.New("tenant id is required")
	}
	url := fmt.Sprintf("%s/api/v1/tenants/%s/%s", settings.Server, settings.Tenant, c.resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}
	fmt.Println(string(body))
	return nil
}

var (
	_ cmds.BareCommand = &serveGlazedCommand{}
	_ cmds.BareCommand = &checkGlazedCommand{}
	_ cmds.BareCommand = &remoteQueryCommand{}
)
