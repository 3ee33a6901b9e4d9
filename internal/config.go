package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ignite/internal/remote"
	"github.com/starford/ignite/internal/syncer"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Remote backends.
const (
	BackendFS   = "fs"
	BackendS3   = "s3"
	BackendHTTP = "http"
)

// Locator caches.
const (
	LocatorMemory = "memory"
	LocatorRedis  = "redis"
)

// Credential modes.
const (
	CredentialNone    = "none"
	CredentialStatic  = "static"
	CredentialSession = "session"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Remote     RemoteConfig      `yaml:"remote"`
	Credential CredentialConfig  `yaml:"credential"`
	Sync       SyncConfig        `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Credential.Validate(); err != nil {
		return fmt.Errorf("credential: %w", err)
	}
	return c.Sync.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Log      LogConfig  `yaml:"log"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogConfig enables a rotating log file. An empty File logs to the console.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// RemoteConfig selects where the shared thoughts file lives.
type RemoteConfig struct {
	Backend  string        `yaml:"backend"`
	FileName string        `yaml:"file_name"`
	FS       FSConfig      `yaml:"fs"`
	S3       S3Config      `yaml:"s3"`
	HTTP     HTTPRemote    `yaml:"http"`
	Locator  LocatorConfig `yaml:"locator"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if c.FileName == "" {
		c.FileName = remote.DefaultFileName
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendS3, BackendHTTP)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case BackendFS:
		if err := c.FS.Validate(); err != nil {
			return err
		}
	case BackendS3:
		if err := c.S3.Validate(); err != nil {
			return err
		}
	case BackendHTTP:
		if err := c.HTTP.Validate(); err != nil {
			return err
		}
	}
	return c.Locator.Validate()
}

// FSConfig is a directory holding the shared file, e.g. a synced drive folder.
type FSConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the fs remote configuration.
func (c *FSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate validates the s3 remote configuration.
func (c *S3Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.SecretKey, validation.Required),
	)
}

// HTTPRemote is a WebDAV-style endpoint.
type HTTPRemote struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the http remote configuration.
func (c *HTTPRemote) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// LocatorConfig chooses where the resolved file locator is cached.
type LocatorConfig struct {
	Cache    string        `yaml:"cache"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Validate validates the locator configuration.
func (c *LocatorConfig) Validate() error {
	if c.Cache == "" {
		c.Cache = LocatorMemory
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Cache, validation.In(LocatorMemory, LocatorRedis)),
		validation.Field(&c.RedisURL, validation.When(c.Cache == LocatorRedis, validation.Required)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// CredentialConfig selects how the remote bearer credential is obtained.
type CredentialConfig struct {
	Mode         string        `yaml:"mode"`
	Token        string        `yaml:"token"`
	ServiceURL   string        `yaml:"service_url"`
	SessionToken string        `yaml:"session_token"`
	RefreshLead  time.Duration `yaml:"refresh_lead"`
}

// Validate validates the credential configuration.
func (c *CredentialConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = CredentialNone
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(CredentialNone, CredentialStatic, CredentialSession)),
		validation.Field(&c.Token, validation.When(c.Mode == CredentialStatic, validation.Required)),
		validation.Field(&c.ServiceURL, validation.When(c.Mode == CredentialSession, validation.Required)),
		validation.Field(&c.RefreshLead, validation.Min(time.Duration(0))),
	)
}

// SyncConfig controls merge triggers.
type SyncConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Watch        bool          `yaml:"watch"`
	StartupMerge bool          `yaml:"startup_merge"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Log: LogConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./ignite.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Remote: RemoteConfig{
			Backend:  BackendFS,
			FileName: remote.DefaultFileName,
			FS: FSConfig{
				Dir: "./remote",
			},
			HTTP: HTTPRemote{
				Timeout: 30 * time.Second,
			},
			Locator: LocatorConfig{
				Cache: LocatorMemory,
			},
		},
		Credential: CredentialConfig{
			Mode:        CredentialNone,
			RefreshLead: syncer.DefaultRefreshLead,
		},
		Sync: SyncConfig{
			Interval:     syncer.DefaultInterval,
			Watch:        true,
			StartupMerge: true,
		},
	}
}
