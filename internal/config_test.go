package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeToken, Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", cfg.Sync.Interval)
	}
	if cfg.Remote.FileName != "ignite-thoughts.md" {
		t.Errorf("file name = %q", cfg.Remote.FileName)
	}
}

func TestRemoteConfig_Backends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RemoteConfig)
		wantErr bool
	}{
		{"fs default", func(*RemoteConfig) {}, false},
		{"fs without dir", func(c *RemoteConfig) { c.FS.Dir = "" }, true},
		{"unknown backend", func(c *RemoteConfig) { c.Backend = "ftp" }, true},
		{"s3 missing bucket", func(c *RemoteConfig) {
			c.Backend = BackendS3
			c.S3 = S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}
		}, true},
		{"s3 complete", func(c *RemoteConfig) {
			c.Backend = BackendS3
			c.S3 = S3Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"}
		}, false},
		{"http missing url", func(c *RemoteConfig) { c.Backend = BackendHTTP }, true},
		{"redis locator without url", func(c *RemoteConfig) { c.Locator.Cache = LocatorRedis }, true},
		{"redis locator", func(c *RemoteConfig) {
			c.Locator.Cache = LocatorRedis
			c.Locator.RedisURL = "redis://localhost:6379/0"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Remote
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRemoteConfig_EmptyFileNameDefaults(t *testing.T) {
	cfg := NewDefaultConfig().Remote
	cfg.FileName = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.FileName != "ignite-thoughts.md" {
		t.Errorf("file name = %q", cfg.FileName)
	}
}

func TestCredentialConfig_Modes(t *testing.T) {
	cfg := CredentialConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to none: %v", err)
	}
	if cfg.Mode != CredentialNone {
		t.Errorf("mode = %q", cfg.Mode)
	}

	if err := (&CredentialConfig{Mode: CredentialStatic}).Validate(); err == nil {
		t.Error("static mode without token should fail")
	}
	if err := (&CredentialConfig{Mode: CredentialSession}).Validate(); err == nil {
		t.Error("session mode without service url should fail")
	}
	if err := (&CredentialConfig{Mode: CredentialSession, ServiceURL: "https://auth.example"}).Validate(); err != nil {
		t.Errorf("session mode: %v", err)
	}
}

func TestFullConfig_NestedValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = AuthModeToken
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.Credential.Mode = CredentialStatic
	err := cfg.Validate()
	if err == nil || !strings.HasPrefix(err.Error(), "credential:") {
		t.Fatalf("unexpected error: %v", err)
	}
}
