package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultbridge/internal/export"
	"github.com/starford/vaultbridge/internal/extract"
	"github.com/starford/vaultbridge/internal/selection"
	"github.com/starford/vaultbridge/internal/storage"
	"github.com/starford/vaultbridge/internal/tracing"
	pkgconfig "github.com/starford/vaultbridge/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Output   OutputConfig      `yaml:"output"`
	Tags     TagsConfig        `yaml:"tags"`
	Images   ImagesConfig      `yaml:"images"`
	Script   ScriptConfig      `yaml:"script"`
	Auth     AuthConfig        `yaml:"auth"`
	Watch    WatchConfig       `yaml:"watch"`
	Datasets []DatasetConfig   `yaml:"datasets"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Tags.Validate(); err != nil {
		return err
	}
	if err := c.Images.Validate(); err != nil {
		return err
	}
	if err := c.Script.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Datasets))
	for i := range c.Datasets {
		ds := &c.Datasets[i]
		if err := ds.Validate(); err != nil {
			return fmt.Errorf("datasets[%d]: %w", i, err)
		}
		key := strings.ToLower(ds.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("datasets: duplicate name %q", ds.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ExpandPaths resolves a leading "~/" in every path field.
func (c *Config) ExpandPaths() {
	for _, p := range []*string{
		&c.Vault.Path,
		&c.Output.Dir,
		&c.Output.SQLitePath,
		&c.Output.AllExceptMdPath,
		&c.Output.CanvasPath,
		&c.Images.DownloadDir,
		&c.Script.Path,
		&c.App.Tracing.Output,
	} {
		*p = pkgconfig.ExpandHome(*p)
	}
	for i := range c.Datasets {
		c.Datasets[i].Output = pkgconfig.ExpandHome(c.Datasets[i].Output)
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	HTTP     HTTPConfig    `yaml:"http"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.Tracing.Validate()
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	// Output is a file spans are appended to; empty writes to stderr.
	Output      string  `yaml:"output"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate validates the tracing configuration.
func (c *TracingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Exporter, validation.In(tracing.ExporterStdout)),
		validation.Field(&c.SampleRatio, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (c *TracingConfig) settings() tracing.Config {
	return tracing.Config{
		Enabled:     c.Enabled,
		Exporter:    c.Exporter,
		Output:      c.Output,
		ServiceName: c.ServiceName,
		SampleRatio: c.SampleRatio,
	}
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

// VaultConfig describes the vault being exported.
type VaultConfig struct {
	Path string `yaml:"path"`
	// Name is the vault name used in URIs. Defaults to the folder name.
	Name      string `yaml:"name"`
	URIScheme string `yaml:"uri_scheme"`
	// Extensions are the text file kinds parsed for links and tags.
	Extensions []string `yaml:"extensions"`
	DataDir    string   `yaml:"data_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.URIScheme, validation.Required),
		validation.Field(&c.DataDir, validation.Required),
	)
}

// VaultName returns Name, or the base name of Path when unset.
func (c *VaultConfig) VaultName() string {
	if c.Name != "" {
		return c.Name
	}
	return filepath.Base(filepath.Clean(c.Path))
}

// OutputConfig holds where the JSON files and their mirrors go.
type OutputConfig struct {
	// Dir overrides the default <vault>/<data_dir>/plugins/vaultbridge.
	Dir             string `yaml:"dir"`
	SQLitePath      string `yaml:"sqlite_path"`
	AllExceptMdPath string `yaml:"all_except_md_path"`
	CanvasPath      string `yaml:"canvas_path"`

	S3 storage.S3Config `yaml:"s3"`
}

// TagsConfig holds the default tag word transform.
type TagsConfig struct {
	Transform string `yaml:"transform"`
}

// Validate validates the tags configuration.
func (c *TagsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Transform, validation.By(tagTransformRule)),
	)
}

// ImagesConfig holds the frontmatter image rewriting settings. The
// rewrite always runs; Download only controls fetching remote images.
type ImagesConfig struct {
	Download bool `yaml:"download"`
	// LibraryPath is the image library folder relative to the home directory.
	LibraryPath string        `yaml:"library_path"`
	DownloadDir string        `yaml:"download_dir"`
	SourceKeys  []string      `yaml:"source_keys"`
	Fallback    string        `yaml:"fallback"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxBytes    int64         `yaml:"max_bytes"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LibraryPath, validation.Required),
		validation.Field(&c.DownloadDir, validation.When(c.Download, validation.Required)),
		validation.Field(&c.SourceKeys, validation.Required),
		validation.Field(&c.Fallback, validation.In("", string(extract.FallbackNone), string(extract.FallbackFolderNote))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxBytes, validation.Min(int64(0))),
	)
}

// ScriptConfig holds the external sync script run after each export.
type ScriptConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Delay   time.Duration `yaml:"delay"`
}

// Validate validates the script configuration.
func (c *ScriptConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Delay, validation.Min(time.Duration(0))),
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// WatchConfig holds the vault watcher settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// GateConfig is one tag gate of a dataset.
type GateConfig struct {
	Scope      string `yaml:"scope"`
	Outside    bool   `yaml:"outside"`
	RequireTag string `yaml:"require_tag"`
}

// DatasetConfig is one row of the dataset table.
type DatasetConfig struct {
	Name                 string       `yaml:"name"`
	Pattern              string       `yaml:"pattern"`
	File                 string       `yaml:"file"`
	Output               string       `yaml:"output"`
	Extensions           []string     `yaml:"extensions"`
	Gates                []GateConfig `yaml:"gates"`
	TagTransform         string       `yaml:"tag_transform"`
	SkipIdentityOnly     bool         `yaml:"skip_identity_only"`
	IncludeResolvedLinks bool         `yaml:"include_resolved_links"`
}

// Validate validates the dataset row.
func (c *DatasetConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Pattern, validation.Required),
		validation.Field(&c.File, validation.Required),
		validation.Field(&c.TagTransform, validation.By(tagTransformRule)),
	); err != nil {
		return err
	}
	_, err := c.policy()
	return err
}

func (c *DatasetConfig) policy() (selection.Policy, error) {
	gates := make([]selection.GateSpec, 0, len(c.Gates))
	for _, g := range c.Gates {
		if g.Scope == "" || g.RequireTag == "" {
			return selection.Policy{}, errors.New("gate: scope and require_tag are required")
		}
		gates = append(gates, selection.GateSpec{Scope: g.Scope, Outside: g.Outside, RequireTag: g.RequireTag})
	}
	return selection.Compile(c.Pattern, gates)
}

func tagTransformRule(value interface{}) error {
	s, _ := value.(string)
	_, err := extract.ParseTagTransform(s)
	return err
}

// ExportSettings converts the configuration into the exporter settings.
// home anchors the image library for the local existence check.
func (c *Config) ExportSettings(home string) export.Settings {
	fallback, _ := extract.ParseImageFallback(c.Images.Fallback)
	return export.Settings{
		VaultName:      c.Vault.VaultName(),
		URIScheme:      c.Vault.URIScheme,
		OutputDir:      c.Output.Dir,
		DataDir:        c.Vault.DataDir,
		TextExtensions: c.Vault.Extensions,
		Images: extract.ImageOptions{
			Download:    c.Images.Download,
			HomeDir:     home,
			LibraryPath: c.Images.LibraryPath,
			DownloadDir: c.Images.DownloadDir,
			SourceKeys:  c.Images.SourceKeys,
			Fallback:    fallback,
		},
		ScriptEnabled:   c.Script.Enabled,
		ScriptPath:      c.Script.Path,
		ScriptDelay:     c.Script.Delay,
		AllExceptMdPath: c.Output.AllExceptMdPath,
		CanvasPath:      c.Output.CanvasPath,
	}
}

// ExportDatasets compiles the dataset table. A dataset without its own
// tag transform inherits tags.transform.
func (c *Config) ExportDatasets() ([]export.Dataset, error) {
	out := make([]export.Dataset, 0, len(c.Datasets))
	for _, ds := range c.Datasets {
		policy, err := ds.policy()
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
		name := ds.TagTransform
		if name == "" {
			name = c.Tags.Transform
		}
		transform, err := extract.ParseTagTransform(name)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
		out = append(out, export.Dataset{
			Name:                 ds.Name,
			File:                 ds.File,
			Output:               ds.Output,
			Policy:               policy,
			Extensions:           ds.Extensions,
			TagTransform:         transform,
			IncludeResolvedLinks: ds.IncludeResolvedLinks,
			SkipIdentityOnly:     ds.SkipIdentityOnly,
		})
	}
	return out, nil
}

// DefaultDatasets returns the built-in dataset table.
func DefaultDatasets() []DatasetConfig {
	return []DatasetConfig{
		{
			Name: "connections",
			Pattern: `^(Modules/40 Topic/43\.00 Humanities/43\.04 Connections|` +
				`Modules/40 Topic/46\.00 Media/46\.01 Music/Artist/.*|` +
				`Data/md/YouTube/YouTubeSubscriptionData/.*)`,
			File: "connections.json",
			Gates: []GateConfig{{
				Scope:      `^Data/md/YouTube/YouTubeSubscriptionData/`,
				RequireTag: "connection/people/sync",
			}},
		},
		{
			Name:    "courses",
			Pattern: `^Modules/00 Tech/01\.00 IT/01\.06 Skills/Learning/Courses/.*`,
			File:    "courses.json",
		},
		{
			Name:                 "resources",
			Pattern:              `^Modules/.*/Resources/.*`,
			File:                 "resources.json",
			IncludeResolvedLinks: true,
		},
		{
			Name:         "tech",
			Pattern:      `^Modules/00 Tech/.*`,
			File:         "tech.json",
			TagTransform: string(extract.TagDropFirstSegment),
		},
		{
			Name:       "prompts",
			Pattern:    `.*`,
			File:       "prompts.json",
			Extensions: []string{"md", "txt"},
			Gates: []GateConfig{{
				Scope:      `^Prompts/`,
				Outside:    true,
				RequireTag: "prompt/active",
			}},
			SkipIdentityOnly: true,
		},
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
			Tracing: TracingConfig{
				Exporter:    tracing.ExporterStdout,
				ServiceName: "vaultbridge",
				SampleRatio: 1,
			},
		},
		Vault: VaultConfig{
			Path:       "./vault",
			URIScheme:  extract.DefaultURIScheme,
			Extensions: []string{"md"},
			DataDir:    ".obsidian",
		},
		Tags: TagsConfig{
			Transform: string(extract.TagLastSegment),
		},
		Images: ImagesConfig{
			Download:    true,
			LibraryPath: "Library/Application Support/vaultbridge/images",
			DownloadDir: "~/Library/Application Support/vaultbridge/images",
			SourceKeys:  []string{"image", "youtubeChannelThumbnail"},
			Fallback:    string(extract.FallbackNone),
			Timeout:     30 * time.Second,
			MaxBytes:    10 << 20,
		},
		Script: ScriptConfig{
			Delay: 3 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Debounce: time.Second,
		},
		Datasets: DefaultDatasets(),
	}
}
