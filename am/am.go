package am

// Config represents the snpm configuration shared by the registry server
// and the publishing client.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Registry RegistryConfig `mapstructure:"registry" toml:"registry"`
	Fetch    FetchConfig    `mapstructure:"fetch" toml:"fetch"`
	Build    BuildConfig    `mapstructure:"build" toml:"build"`
	Publish  PublishConfig  `mapstructure:"publish" toml:"publish"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

// ServerConfig configures the registry server
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"` // empty = any origin
}

// RegistryConfig tells the publishing client where the registry lives
type RegistryConfig struct {
	URL  string `mapstructure:"url" toml:"url"` // scheme + host, e.g. http://localhost
	Port int    `mapstructure:"port" toml:"port"`
}

// FetchConfig configures source archive download
type FetchConfig struct {
	BaseURL        string `mapstructure:"base_url" toml:"base_url"`                 // archive host, default https://github.com
	GitURLTemplate string `mapstructure:"git_url_template" toml:"git_url_template"` // {owner} and {repo} placeholders
	VerifyTag      bool   `mapstructure:"verify_tag" toml:"verify_tag"`             // list remote tags before downloading
	MinFreeMB      int    `mapstructure:"min_free_mb" toml:"min_free_mb"`           // 0 disables the disk check
	MaxArchiveMB   int    `mapstructure:"max_archive_mb" toml:"max_archive_mb"`     // 0 = unlimited
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	AllowPrivate   bool   `mapstructure:"allow_private" toml:"allow_private"` // allow private/loopback archive hosts
}

// BuildConfig configures the dependency manager and build tool invocation
type BuildConfig struct {
	InstallCommand string `mapstructure:"install_command" toml:"install_command"`
	RunCommand     string `mapstructure:"run_command" toml:"run_command"` // script name is appended
	Script         string `mapstructure:"script" toml:"script"`
	ManifestFile   string `mapstructure:"manifest_file" toml:"manifest_file"`
}

// PublishConfig configures pipeline runs
type PublishConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"` // 0 = no deadline
	WorkRoot       string `mapstructure:"work_root" toml:"work_root"`             // empty = system temp dir
	KeepWorkdir    bool   `mapstructure:"keep_workdir" toml:"keep_workdir"`
	RatePerMinute  int    `mapstructure:"rate_per_minute" toml:"rate_per_minute"` // 0 = unlimited
	Burst          int    `mapstructure:"burst" toml:"burst"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json"`
}

// Defaults shared by the server and the client
const (
	DefaultServerPort  = 3000
	DefaultRegistryURL = "http://localhost"
)

// File and directory permissions
const (
	DefaultDirPermissions  = 0750
	DefaultFilePermissions = 0644
)
