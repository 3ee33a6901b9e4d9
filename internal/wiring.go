package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/ignite/internal/auth"
	"github.com/starford/ignite/internal/merge"
	"github.com/starford/ignite/internal/remote"
	"github.com/starford/ignite/internal/sse"
	"github.com/starford/ignite/internal/store"
	"github.com/starford/ignite/internal/syncer"
	"github.com/starford/ignite/internal/thoughtservice"
)

// components is the assembled sync core shared by every run mode.
type components struct {
	logger *slog.Logger
	db     *store.DB
	file   *remote.File
	creds  auth.Source
	broker *sse.Broker
	orch   *syncer.Orchestrator
	svc    *thoughtservice.Service

	// watchPath is set for the fs backend when watching is enabled.
	watchPath string
	closers   []io.Closer
}

func newLogger(cfg *Config, console io.Writer) (*slog.Logger, io.Closer) {
	var out io.Writer = console
	var closer io.Closer
	if cfg.App.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.App.Log.File,
			MaxSize:    cfg.App.Log.MaxSizeMB,
			MaxBackups: cfg.App.Log.MaxBackups,
			MaxAge:     cfg.App.Log.MaxAgeDays,
		}
		out, closer = lj, lj
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	})), closer
}

func assemble(ctx context.Context, app *application) (*components, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	console := app.logOutput
	if console == nil {
		console = os.Stdout
	}
	logger, logCloser := newLogger(cfg, console)
	slog.SetDefault(logger)

	c := &components{logger: logger}
	if logCloser != nil {
		c.closers = append(c.closers, logCloser)
	}

	logger.Info("Configuration loaded",
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("remote_backend", cfg.Remote.Backend),
		slog.String("remote_file", cfg.Remote.FileName),
		slog.String("credential_mode", cfg.Credential.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	c.db = db
	c.closers = append(c.closers, db)

	backend, err := c.newBackend(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init remote: %w", err)
	}

	locators, err := c.newLocatorCache(ctx, cfg.Remote)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init locator cache: %w", err)
	}

	c.file = remote.NewFile(cfg.Remote.FileName, backend, locators, logger)
	c.creds = newCredentials(cfg.Credential)
	c.broker = sse.NewBroker(time.Second)

	engine := merge.New(db, c.file, logger)
	c.orch = syncer.New(db, engine, c.creds,
		syncer.WithInterval(cfg.Sync.Interval),
		syncer.WithRefreshLead(cfg.Credential.RefreshLead),
		syncer.WithPublisher(c.broker),
		syncer.WithLogger(logger),
		syncer.WithStartupMerge(cfg.Sync.StartupMerge),
	)
	c.svc = thoughtservice.New(db, c.orch)
	return c, nil
}

func (c *components) newBackend(cfg *Config) (remote.Backend, error) {
	rc := cfg.Remote
	switch rc.Backend {
	case BackendFS:
		if err := os.MkdirAll(rc.FS.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create remote dir: %w", err)
		}
		fs, err := remote.NewFS(rc.FS.Dir)
		if err != nil {
			return nil, err
		}
		if cfg.Sync.Watch {
			if c.watchPath, err = fs.Path(rc.FileName); err != nil {
				return nil, err
			}
		}
		return fs, nil
	case BackendS3:
		return remote.NewS3(remote.S3Config{
			Endpoint:  rc.S3.Endpoint,
			Bucket:    rc.S3.Bucket,
			Prefix:    rc.S3.Prefix,
			Region:    rc.S3.Region,
			AccessKey: rc.S3.AccessKey,
			SecretKey: rc.S3.SecretKey,
			UseSSL:    rc.S3.UseSSL,
		})
	case BackendHTTP:
		var client *http.Client
		if rc.HTTP.Timeout > 0 {
			client = &http.Client{Timeout: rc.HTTP.Timeout}
		}
		return remote.NewHTTP(rc.HTTP.BaseURL, client)
	}
	return nil, fmt.Errorf("unknown remote backend %q", rc.Backend)
}

func (c *components) newLocatorCache(ctx context.Context, rc RemoteConfig) (remote.LocatorCache, error) {
	if rc.Locator.Cache != LocatorRedis {
		return &remote.MemoryLocator{}, nil
	}
	rl, err := remote.NewRedisLocator(ctx, rc.Locator.RedisURL, rc.FileName, rc.Locator.TTL)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, rl)
	return rl, nil
}

func newCredentials(cc CredentialConfig) auth.Source {
	switch cc.Mode {
	case CredentialStatic:
		return auth.NewStatic(cc.Token)
	case CredentialSession:
		return auth.NewSession(cc.ServiceURL, cc.SessionToken)
	default:
		return &auth.None{}
	}
}

// ensureCredential refreshes an invalid credential once. Failures are logged;
// the caller proceeds signed out.
func (c *components) ensureCredential(ctx context.Context) {
	if _, ok := c.creds.Current(); ok {
		return
	}
	if _, err := c.creds.Refresh(ctx); err != nil {
		c.logger.Warn("credential refresh failed", slog.String("error", err.Error()))
	}
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() {
	if c.broker != nil {
		c.broker.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
