package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tongue/fotbroms/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("Server.MaxFileSize = %d, want %d", cfg.Server.MaxFileSize, DefaultMaxFileSize)
	}
	if cfg.Storage.Backend != BackendDisk {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendDisk)
	}
	if cfg.Client.URL != DefaultURL {
		t.Errorf("Client.URL = %q, want %q", cfg.Client.URL, DefaultURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
	if cfg.Server.Addr != DefaultAddr || cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fotbroms.yaml")
	yaml := `server:
  addr: ":9000"
  accepts: "image/*, .mp4"
  retention: 72h
storage:
  backend: s3
s3:
  bucket: photos
  endpoint: http://localhost:9000
  use_path_style: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9000")
	}
	if cfg.Server.Retention != 72*time.Hour {
		t.Errorf("Server.Retention = %v, want 72h", cfg.Server.Retention)
	}
	if cfg.Storage.Backend != BackendS3 || cfg.S3.Bucket != "photos" || !cfg.S3.UsePathStyle {
		t.Errorf("storage = %+v, s3 = %+v", cfg.Storage, cfg.S3)
	}
	// Keys absent from the file keep their defaults.
	if cfg.S3.Region != "us-east-1" || cfg.Storage.Prefix != "uploads/" {
		t.Errorf("defaults lost: region %q prefix %q", cfg.S3.Region, cfg.Storage.Prefix)
	}
	if got := cfg.ServerAccepts().Len(); got != 2 {
		t.Errorf("ServerAccepts().Len() = %d, want 2", got)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FOTBROMS_SERVER_ADDR", "127.0.0.1:7000")
	t.Setenv("FOTBROMS_SERVER_MAX_FILE_SIZE", "1024")
	t.Setenv("FOTBROMS_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("FOTBROMS_CLIENT_TIMEOUT", "30s")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxFileSize != 1024 {
		t.Errorf("Server.MaxFileSize = %d, want 1024", cfg.Server.MaxFileSize)
	}
	if cfg.S3.SecretAccessKey != "secret" {
		t.Errorf("S3.SecretAccessKey = %q", cfg.S3.SecretAccessKey)
	}
	if cfg.Client.Timeout != 30*time.Second {
		t.Errorf("Client.Timeout = %v, want 30s", cfg.Client.Timeout)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FOTBROMS_CLIENT_ACCEPTS", "image/*")

	flags := pflag.NewFlagSet("put", pflag.ContinueOnError)
	flags.String("accepts", "", "")
	if err := flags.Parse([]string{"--accepts", ".mp4"}); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := v.BindPFlag("client.accepts", flags.Lookup("accepts")); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Client.Accepts != ".mp4" {
		t.Errorf("Client.Accepts = %q, want %q", cfg.Client.Accepts, ".mp4")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(dir, "nope.yaml"))
		if errors.Code(err) != "C001" {
			t.Fatalf("err = %v, want C001", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("not valid json"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(viper.New(), path)
		if errors.Code(err) != "C001" {
			t.Fatalf("err = %v, want C001", err)
		}
	})

	t.Run("undecodable value", func(t *testing.T) {
		path := filepath.Join(dir, "types.yaml")
		if err := os.WriteFile(path, []byte("server:\n  retention: soon\n"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(viper.New(), path)
		if errors.Code(err) != "C001" {
			t.Fatalf("err = %v, want C001", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		detail string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero max size", func(c *Config) { c.Server.MaxFileSize = 0 }, "server.max_file_size"},
		{"negative retention", func(c *Config) { c.Server.Retention = -time.Second }, "server.retention"},
		{"retention without interval", func(c *Config) {
			c.Server.Retention = time.Hour
			c.Server.CleanupInterval = 0
		}, "server.cleanup_interval"},
		{"empty prefix", func(c *Config) { c.Storage.Prefix = "" }, "storage.prefix"},
		{"absolute prefix", func(c *Config) { c.Storage.Prefix = "/uploads/" }, "storage.prefix"},
		{"prefix without slash", func(c *Config) { c.Storage.Prefix = "uploads" }, "storage.prefix"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"disk without dir", func(c *Config) { c.Storage.Dir = "" }, "storage.dir"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, "s3.bucket"},
		{"relative client url", func(c *Config) { c.Client.URL = "/upload" }, "client.url"},
		{"ftp client url", func(c *Config) { c.Client.URL = "ftp://h/" }, "client.url"},
		{"negative timeout", func(c *Config) { c.Client.Timeout = -time.Second }, "client.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if errors.Code(err) != "C001" {
				t.Fatalf("Validate() = %v, want C001", err)
			}
			e, ok := err.(*errors.Error)
			if !ok || !strings.Contains(e.Detail, tt.detail) {
				t.Fatalf("Validate() = %#v, want detail mentioning %q", err, tt.detail)
			}
		})
	}
}

func TestValidate_S3WithBucket(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendS3
	cfg.Storage.Dir = ""
	cfg.S3.Bucket = "photos"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer() = %v", err)
	}
}
