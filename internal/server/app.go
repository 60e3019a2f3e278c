// Package server wires the backends, services and transports together and
// runs them until the process is signalled to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/backends"
	"github.com/dmitrijs2005/pilosopo/internal/server/buffer"
	"github.com/dmitrijs2005/pilosopo/internal/server/config"
	"github.com/dmitrijs2005/pilosopo/internal/server/deadletter"
	"github.com/dmitrijs2005/pilosopo/internal/server/identity"
	"github.com/dmitrijs2005/pilosopo/internal/server/records"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pilosopo/internal/server/rest"
	"github.com/dmitrijs2005/pilosopo/internal/server/services"
	surrealdb "github.com/surrealdb/surrealdb.go"

	gs "github.com/dmitrijs2005/pilosopo/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	records *records.Connection
	probe   *backends.Probe
	surreal *surrealdb.DB

	userService    *services.UserService
	historyService *services.HistoryService
}

// status adds the record-store connection state to the probe for /health.
type status struct {
	*backends.Probe
	conn *records.Connection
}

func (s status) RecordStoreState() string {
	return s.conn.State().String()
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogBackend, os.Stdout)

	var provider identity.Provider
	fb, err := identity.NewFirebaseProvider(ctx, c.FirebaseCredentialsJSON, c.FirebaseCredentialsFile)
	if err != nil {
		logger.Warn(ctx, "identity provider not initialized", "error", err)
	} else {
		provider = fb
	}

	var grant identity.PasswordGrant
	if identity.IsUsableWebKey(c.FirebaseAPIKey) {
		grant = identity.NewRESTPasswordGrant(c.FirebaseAPIKey)
	} else {
		logger.Warn(ctx, "identity provider web API key missing or placeholder, delegated login disabled")
	}

	app := &App{config: c, logger: logger}

	var documents profiles.Repository
	if c.SurrealDBURL != "" {
		db, err := openSurreal(ctx, c)
		if err != nil {
			logger.Warn(ctx, "document store not initialized", "url", c.SurrealDBURL, "error", err)
		} else {
			app.surreal = db
			documents = profiles.NewSurrealRepository(db)
		}
	}

	var archive services.Archiver
	if c.S3Bucket != "" {
		a, err := deadletter.NewS3Archive(ctx, deadletter.Settings{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("dead-letter archive init error: %w", err)
		}
		archive = a
	}

	app.records = records.NewConnection(c.DatabaseDSN, repomanager.NewPostgresRepositoryManager(), c.ConnectRetryDelay, c.HealthCheckInterval, logger)
	app.probe = backends.NewProbe(provider, grant, documents, app.records)

	app.userService = services.NewUserService(app.probe, logger, c.AllowExistenceFallback)
	app.historyService = services.NewHistoryService(app.records, buffer.New(), archive, logger)
	app.records.OnConnected(app.historyService.OnRecordStoreConnected)

	if c.AllowExistenceFallback {
		logger.Warn(ctx, "provider-lookup login fallback is enabled; it does not verify passwords")
	}

	return app, nil
}

func openSurreal(ctx context.Context, c *config.Config) (*surrealdb.DB, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, c.SurrealDBURL)
	if err != nil {
		return nil, err
	}
	if _, err := db.SignIn(ctx, surrealdb.Auth{Username: c.SurrealDBUser, Password: c.SurrealDBPassword}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}
	if err := db.Use(ctx, c.SurrealDBNamespace, c.SurrealDBDatabase); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", c.SurrealDBNamespace, c.SurrealDBDatabase, err)
	}
	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(rest.Options{
		Address:       app.config.EndpointAddrHTTP,
		Environment:   app.config.Environment,
		WebKeyPresent: app.config.FirebaseAPIKey != "",
		CORSOrigins:   app.config.CORSOrigins,
	}, app.userService, app.historyService, status{Probe: app.probe, conn: app.records}, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.probe, app.config.HealthCheckInterval, app.logger)
	app.records.OnConnected(s.Refresh)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.records.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.surreal != nil {
		if err := app.surreal.Close(context.Background()); err != nil {
			app.logger.Warn(ctx, "document store close failed", "error", err)
		}
	}
	if n := app.historyService.Buffered(); n > 0 {
		app.logger.Warn(ctx, "history entries still buffered at shutdown are lost", "count", n)
	}
	app.logger.Info(ctx, "App stopped")
}
