// Package server wires the chat gateway, the credential store, the
// accounting engine and the report generator together and runs the HTTP and
// gRPC endpoints until the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/accounting"
	"github.com/dmitrijs2005/guildkeeper/internal/server/api"
	"github.com/dmitrijs2005/guildkeeper/internal/server/archive"
	"github.com/dmitrijs2005/guildkeeper/internal/server/auth"
	"github.com/dmitrijs2005/guildkeeper/internal/server/config"
	"github.com/dmitrijs2005/guildkeeper/internal/server/discord"
	"github.com/dmitrijs2005/guildkeeper/internal/server/dispatcher"
	"github.com/dmitrijs2005/guildkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/guildkeeper/internal/server/report"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/guildkeeper/internal/timex"

	gs "github.com/dmitrijs2005/guildkeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	gateway *discord.Gateway
	http    *api.Server
	health  *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	repos, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("credential store init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("credential store migrations: %w", err)
	}

	session, err := discord.NewSession(c.LoginToken)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	gateway := discord.New(session, c.GuildID, logger)

	var archiver report.Archiver
	if c.ArchiveEnabled() {
		a, err := archive.NewFromConfig(ctx, c)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
		archiver = a
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	authService := auth.NewService(repos.Credentials(), auth.NewBcryptHasher(), gateway, c.AuthenticatedRoleID, c.Modules, logger)
	engine := accounting.NewEngine(accounting.NewMemoryLedger(), timex.SystemClock, logger)
	reports := report.NewGenerator(engine, gateway, c.ViewerRoleID, archiver, logger)

	router := dispatcher.NewRouter(gateway, authService, engine, reports, m, dispatcher.Options{
		GatedChannelID: c.GatedChannelID,
		BotAuthorID:    c.BotAuthorID,
		CommandPrefix:  c.CommandPrefix,
	}, logger)
	gateway.Attach(router)

	health := gs.NewGRPCServer(c.EndpointAddrGRPC, logger)
	gateway.OnStatusChange(func(connected bool) {
		if connected {
			m.Gateway.Set(1)
		} else {
			m.Gateway.Set(0)
		}
		health.SetGatewayStatus(connected)
	})

	return &App{
		config:  c,
		logger:  logger,
		repos:   repos,
		gateway: gateway,
		http:    api.NewServer(c.EndpointAddrHTTP, gateway, registry, logger),
		health:  health,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx, app.config.ShutdownTimeout); err != nil {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or a server fails, then
// closes the gateway and the credential store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	// A failed first connect is not fatal; /bootstrap retries it.
	if err := app.gateway.Connect(ctx); err != nil {
		app.logger.Warn(ctx, "initial gateway connect failed", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.gateway.Close(); err != nil {
		app.logger.Error(ctx, "gateway close", "error", err)
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "credential store close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
