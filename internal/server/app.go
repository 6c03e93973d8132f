// Package server wires the relay together: storage, transport, event loop,
// metrics endpoint and the admin console.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/jimrelay/internal/dbx"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
	"github.com/dmitrijs2005/jimrelay/internal/server/config"
	"github.com/dmitrijs2005/jimrelay/internal/server/console"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/dmitrijs2005/jimrelay/internal/server/metrics"
	"github.com/dmitrijs2005/jimrelay/internal/server/relay"
	"github.com/dmitrijs2005/jimrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/jimrelay/internal/server/services"
	"github.com/dmitrijs2005/jimrelay/internal/server/transport"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	directory directory.Directory
	metrics   *metrics.Metrics

	in  io.Reader
	out io.Writer
}

// NewApp opens the directory named by c. The console, when enabled, reads
// from in and writes to out.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	logger, err := logging.New(os.Stderr, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, err
	}

	d, db, err := openDirectory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		directory: d,
		metrics:   metrics.New(),
		in:        in,
		out:       out,
	}, nil
}

func openDirectory(ctx context.Context, c *config.Config) (directory.Directory, *sql.DB, error) {
	if c.DatabaseDriver == config.DriverMemory {
		return directory.NewMemory(), nil, nil
	}

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := dbx.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}

	m := repomanager.NewSQLRepositoryManager(dialect)
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return services.NewDirectoryService(db, m), db, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until a signal arrives, ctx is done or the console exits.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting relay...", "addr", app.config.Addr(), "driver", app.config.DatabaseDriver)
	app.initSignalHandler(ctx, cancelFunc)

	defer app.closeDB(ctx)

	// No session survives a restart.
	if err := app.directory.ClearActive(ctx); err != nil {
		return fmt.Errorf("clear active users: %w", err)
	}

	tr, err := transport.Listen(ctx, app.config.Addr(), app.logger)
	if err != nil {
		return err
	}
	loop := relay.New(tr, app.directory, app.metrics, app.logger, app.config.HandshakeTimeout)

	var wg sync.WaitGroup

	wg.Add(1)
	var loopErr error
	go func() {
		defer wg.Done()
		defer cancelFunc()
		loopErr = loop.Run(ctx)
	}()

	if app.config.MetricsAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.metrics.Serve(ctx, app.config.MetricsAddress, app.logger); err != nil {
				app.logger.Error(ctx, "metrics endpoint failed", "error", err)
			}
		}()
	}

	if !app.config.Headless {
		// Not waited for: a console blocked on its input must not hold up
		// shutdown.
		c := console.New(app.directory, app.config, loop, app.in, app.out, app.logger)
		go func() {
			defer cancelFunc()
			if err := c.Run(ctx); err != nil {
				app.logger.Error(ctx, "console failed", "error", err)
			}
		}()
	}

	wg.Wait()
	app.logger.Info(ctx, "Relay stopped")
	return loopErr
}

func (app *App) closeDB(ctx context.Context) {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
}
