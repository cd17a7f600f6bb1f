package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage directory and log file configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	// LogFile is resolved relative to StorageDir. Empty disables file logging.
	LogFile string `toml:"log_file"`
}

// Project identifies the PRIDE project and how its file listing is fetched.
type Project struct {
	ID          string   `toml:"id"`
	APIVersions []string `toml:"api_versions"`
	BaseURL     string   `toml:"base_url"`
	// IndexURL is a template with a single %s placeholder for the project id.
	IndexURL string `toml:"index_url"`
}

// Processing contains the knobs shared by every stage.
type Processing struct {
	MaxItems        int      `toml:"max_items"`
	ThreadCount     int      `toml:"thread_count"`
	CountFailed     bool     `toml:"count_failed"`
	CountSkipped    bool     `toml:"count_skipped"`
	SkipExisting    bool     `toml:"skip_existing"`
	FailEarly       bool     `toml:"fail_early"`
	ValidExtensions []string `toml:"valid_extensions"`
	Filters         []string `toml:"filters"`
}

// Filter contains the filter expression grammar.
type Filter struct {
	OrSeparator    string `toml:"or_separator"`
	Comparator     string `toml:"comparator"`
	UnknownMatches bool   `toml:"unknown_matches"`
}

// Display contains table preview settings.
type Display struct {
	ShownColumns   []string `toml:"shown_columns"`
	PreviewRows    int      `toml:"preview_rows"`
	URLEncodeLinks bool     `toml:"urlencode_links"`
}

// Download contains HTTP settings for file retrieval.
type Download struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RewriteFTP     bool   `toml:"rewrite_ftp"`
	UserAgent      string `toml:"user_agent"`
}

// Thermo contains the raw file conversion container settings.
type Thermo struct {
	DockerBinary         string `toml:"docker_binary"`
	Image                string `toml:"image"`
	ContainerName        string `toml:"container_name"`
	OutputFormat         string `toml:"output_format"`
	KeepContainerRunning bool   `toml:"keep_container_running"`
}

// Merge contains mzML/mzID pairing and join settings.
type Merge struct {
	Suffix          string   `toml:"suffix"`
	PrefixTolerance int      `toml:"prefix_tolerance"`
	MzMLKeys        []string `toml:"mzml_keys"`
	MzIDKeys        []string `toml:"mzid_keys"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mmproteo.
//
// Configuration sections:
//   - Paths: storage directory and log file
//   - Project: PRIDE project id and listing sources
//   - Processing: limits, worker count and skip/count policies
//   - Filter: filter expression grammar
//   - Display: table previews
//   - Download: HTTP retrieval
//   - Thermo: raw file conversion container
//   - Merge: mzML/mzID pairing
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Project    Project    `toml:"project"`
	Processing Processing `toml:"processing"`
	Filter     Filter     `toml:"filter"`
	Display    Display    `toml:"display"`
	Download   Download   `toml:"download"`
	Thermo     Thermo     `toml:"thermo"`
	Merge      Merge      `toml:"merge"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mmproteo/config.toml")
}

// Load locates and parses a configuration file. The returned config is
// normalized but not validated, so callers can apply flag overrides before
// calling Validate.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mmproteo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StorageDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StorageDir, err)
	}
	return nil
}

// LogFilePath returns the absolute log file location or "" when disabled.
func (c *Config) LogFilePath() string {
	logFile := strings.TrimSpace(c.Paths.LogFile)
	if logFile == "" {
		return ""
	}
	if filepath.IsAbs(logFile) {
		return logFile
	}
	return filepath.Join(c.Paths.StorageDir, logFile)
}

// DockerBinary returns the docker executable name.
func (c *Config) DockerBinary() string {
	if c.Thermo.DockerBinary == "" {
		return defaultDockerBinary
	}
	return c.Thermo.DockerBinary
}

// GunzipBinary returns the gzip extraction executable name.
func (c *Config) GunzipBinary() string {
	return "gunzip"
}

// UnzipBinary returns the zip extraction executable name.
func (c *Config) UnzipBinary() string {
	return "unzip"
}

// Encode writes the effective configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
