package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/storage"
	"github.com/starford/codestash/internal/symbology"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Export targets.
const (
	ExportTargetFS = "fs"
	ExportTargetS3 = "s3"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Render  RenderConfig      `yaml:"render"`
	Library LibraryConfig     `yaml:"library"`
	Inbox   InboxConfig       `yaml:"inbox"`
	Export  ExportConfig      `yaml:"export"`
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
	if err := c.Render.Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := c.Library.Validate(); err != nil {
		return fmt.Errorf("library: %w", err)
	}
	if err := c.Inbox.Validate(); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
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

// AuthConfig holds authentication configuration.
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

// RenderConfig controls the remote image service. The local renderer is
// always on.
type RenderConfig struct {
	RemoteEnabled  bool          `yaml:"remote_enabled"`
	RemoteBaseURL  string        `yaml:"remote_base_url"`
	RemoteTimeout  time.Duration `yaml:"remote_timeout"`
	SelfDescribing []string      `yaml:"self_describing"`
	MaxImageBytes  int64         `yaml:"max_image_bytes"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RemoteBaseURL, validation.When(c.RemoteEnabled, validation.Required, is.URL)),
		validation.Field(&c.RemoteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxImageBytes, validation.Min(int64(0))),
	)
}

// RemoteOptions converts the section into render client options.
func (c *RenderConfig) RemoteOptions(logger *slog.Logger) render.RemoteOptions {
	return render.RemoteOptions{
		BaseURL:        c.RemoteBaseURL,
		Timeout:        c.RemoteTimeout,
		SelfDescribing: c.SelfDescribing,
		MaxImageBytes:  c.MaxImageBytes,
		Logger:         logger,
	}
}

// LibraryConfig holds record library defaults.
type LibraryConfig struct {
	DefaultSymbology string `yaml:"default_symbology"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultSymbology, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			if _, err := symbology.Parse(s); err != nil {
				return validation.NewError("validation_symbology", "must be a known symbology")
			}
			return nil
		})),
	)
}

// Symbology returns the configured default, falling back to QR.
func (c *LibraryConfig) Symbology() symbology.Symbology {
	if s, err := symbology.Parse(c.DefaultSymbology); err == nil {
		return s
	}
	return symbology.Default
}

// InboxConfig points at the directory watched for scan files.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// ExportConfig selects where the export command writes images.
type ExportConfig struct {
	Target string   `yaml:"target"`
	Path   string   `yaml:"path"`
	S3     S3Config `yaml:"s3"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	if c.Target == "" {
		c.Target = ExportTargetFS
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Target, validation.In(ExportTargetFS, ExportTargetS3)),
		validation.Field(&c.Path, validation.When(c.Target == ExportTargetFS, validation.Required)),
	); err != nil {
		return err
	}
	if c.Target == ExportTargetS3 {
		return c.S3.Validate()
	}
	return nil
}

// S3Config holds credentials for an S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.Endpoint, is.URL),
	)
}

// Options converts the section into storage options.
func (c *S3Config) Options() storage.S3Options {
	return storage.S3Options{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Prefix:          c.Prefix,
		UsePathStyle:    c.UsePathStyle,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./codestash.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Render: RenderConfig{
			RemoteEnabled:  true,
			RemoteBaseURL:  render.DefaultRemoteBaseURL,
			RemoteTimeout:  render.DefaultRemoteTimeout,
			SelfDescribing: render.DefaultSelfDescribing,
			MaxImageBytes:  render.DefaultMaxImageBytes,
		},
		Library: LibraryConfig{
			DefaultSymbology: symbology.Default.String(),
		},
		Inbox: InboxConfig{
			Path: "./inbox",
		},
		Export: ExportConfig{
			Target: ExportTargetFS,
			Path:   "./export",
		},
	}
}
