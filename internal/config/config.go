package config

import (
	stderrors "errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/pkg/accept"
)

const (
	// ConfigName is the base name of the configuration file.
	ConfigName = "fotbroms"

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "FOTBROMS"

	// DefaultAddr is the default listen address of the upload server.
	DefaultAddr = ":8080"

	// DefaultMaxFileSize is the default upload limit (1 GiB).
	DefaultMaxFileSize = 1 << 30

	// DefaultDir is the default disk storage directory.
	DefaultDir = "uploads"

	// DefaultURL is the default upload target of the client commands.
	DefaultURL = "http://localhost:8080/"
)

// Storage backends.
const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Config is the complete fotbroms configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	S3      S3Config      `mapstructure:"s3"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`

	configPath string
}

// ServerConfig contains upload server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`

	// SessionSecret signs the session cookie. If empty a random key is
	// generated at startup and sessions do not survive restarts.
	SessionSecret string `mapstructure:"session_secret"`

	// MaxFileSize is the largest accepted upload in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size"`

	// Accepts is an optional server-side accept-list, in the same syntax
	// as the widget's accepts attribute.
	Accepts string `mapstructure:"accepts"`

	// Retention removes stored files older than this. Zero keeps files
	// forever.
	Retention time.Duration `mapstructure:"retention"`

	// CleanupInterval is how often expired files are removed.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where uploads are stored.
type StorageConfig struct {
	// Backend is "disk" or "s3".
	Backend string `mapstructure:"backend"`

	// Dir is the disk backend directory.
	Dir string `mapstructure:"dir"`

	// Prefix is prepended to stored paths and S3 object keys. Stored
	// files are served under /<prefix>.
	Prefix string `mapstructure:"prefix"`
}

// S3Config contains S3 connection settings.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// ClientConfig contains settings of the put, watch and tail commands.
type ClientConfig struct {
	// URL is the form action the widget uploads to.
	URL string `mapstructure:"url"`

	// Accepts is the widget's accepts attribute.
	Accepts string `mapstructure:"accepts"`

	// Timeout bounds each upload request. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			MaxFileSize:     DefaultMaxFileSize,
			CleanupInterval: time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendDisk,
			Dir:     DefaultDir,
			Prefix:  "uploads/",
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Client: ClientConfig{
			URL: DefaultURL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every key with its default value on v. Keys
// unknown to v are invisible to AutomaticEnv, so this must run before
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.session_secret", d.Server.SessionSecret)
	v.SetDefault("server.max_file_size", d.Server.MaxFileSize)
	v.SetDefault("server.accepts", d.Server.Accepts)
	v.SetDefault("server.retention", d.Server.Retention)
	v.SetDefault("server.cleanup_interval", d.Server.CleanupInterval)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.prefix", d.Storage.Prefix)
	v.SetDefault("s3.bucket", d.S3.Bucket)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.access_key_id", d.S3.AccessKeyID)
	v.SetDefault("s3.secret_access_key", d.S3.SecretAccessKey)
	v.SetDefault("s3.use_path_style", d.S3.UsePathStyle)
	v.SetDefault("client.url", d.Client.URL)
	v.SetDefault("client.accepts", d.Client.Accepts)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration through v. If file is empty, fotbroms.* is
// looked up in the working directory and $HOME/.config/fotbroms, and a
// missing file is not an error. Flags must already be bound to v.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/fotbroms")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New("C001").
				WithDetailf("Failed to read configuration: %v", err).
				Wrap(err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("C001").
			WithDetailf("Failed to decode configuration: %v", err).
			Wrap(err)
	}
	cfg.configPath = v.ConfigFileUsed()
	return cfg, nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.ValidateServer(); err != nil {
		return err
	}
	return c.ValidateClient()
}

// ValidateServer checks the settings used by the serve command.
func (c *Config) ValidateServer() error {
	switch {
	case c.Server.Addr == "":
		return invalid("server.addr must not be empty")
	case c.Server.MaxFileSize <= 0:
		return invalid("server.max_file_size must be positive, got %d", c.Server.MaxFileSize)
	case c.Server.Retention < 0:
		return invalid("server.retention must not be negative")
	case c.Server.Retention > 0 && c.Server.CleanupInterval <= 0:
		return invalid("server.cleanup_interval must be positive when retention is set")
	}

	if p := c.Storage.Prefix; p == "" || strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/") || strings.ContainsAny(p, "*{}") {
		return invalid("storage.prefix must be a relative path ending in \"/\", got %q", p)
	}

	switch c.Storage.Backend {
	case BackendDisk:
		if c.Storage.Dir == "" {
			return invalid("storage.dir must not be empty for the disk backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return invalid("s3.bucket must be set for the s3 backend")
		}
	default:
		return invalid("storage.backend must be %q or %q, got %q", BackendDisk, BackendS3, c.Storage.Backend)
	}
	return nil
}

// ValidateClient checks the settings used by the client commands.
func (c *Config) ValidateClient() error {
	u, err := url.Parse(c.Client.URL)
	if err != nil {
		return invalid("client.url: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("client.url must be an absolute http(s) URL, got %q", c.Client.URL)
	}
	if c.Client.Timeout < 0 {
		return invalid("client.timeout must not be negative")
	}
	return nil
}

// ServerAccepts returns the parsed server accept-list.
func (c *Config) ServerAccepts() accept.List {
	return accept.Parse(c.Server.Accepts)
}

func invalid(format string, args ...any) error {
	return errors.New("C001").WithDetailf(format, args...)
}
