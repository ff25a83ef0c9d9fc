package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config encapsulates all configuration values for the service.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Encoding  Encoding  `toml:"encoding"`
	Scanner   Scanner   `toml:"scanner"`
	Recovery  Recovery  `toml:"recovery"`
	API       API       `toml:"api"`
	Daemon    Daemon    `toml:"daemon"`
	Tools     Tools     `toml:"tools"`
	Logging   Logging   `toml:"logging"`
}

// Paths groups filesystem locations the daemon reads from and writes to.
type Paths struct {
	MediaDirs []string `toml:"media_dirs"`
	WorkDir   string   `toml:"work_dir"`
	LogDir    string   `toml:"log_dir"`
}

// Encoding groups per-category quality and acceptance settings.
type Encoding struct {
	TVCRF             int `toml:"tv_crf"`
	MovieCRF          int `toml:"movie_crf"`
	TVResCap          int `toml:"tv_res_cap"`
	MovieResCap       int `toml:"movie_res_cap"`
	BitrateFloorTV    int `toml:"bitrate_floor_tv"`
	BitrateFloorMovie int `toml:"bitrate_floor_movie"`
}

// Scanner groups periodic-sweep tuning.
type Scanner struct {
	RescanIntervalSeconds int `toml:"rescan_interval_seconds"`
}

// Recovery groups startup-reconciliation tuning.
type Recovery struct {
	SalvageDurationToleranceSeconds float64 `toml:"salvage_duration_tolerance_seconds"`
}

// API groups HTTP server settings.
type API struct {
	Bind string `toml:"bind"`
}

// Daemon groups process-lifecycle settings.
type Daemon struct {
	ShutdownGracePeriodSeconds int `toml:"shutdown_grace_period_seconds"`
}

// Tools names the external binaries the daemon shells out to.
type Tools struct {
	EncoderBinary string `toml:"encoder_binary"`
	FFProbeBinary string `toml:"ffprobe_binary"`
}

// Logging groups structured-logging settings.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/spacesaver/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
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

	defaultPath, err := expandPath("~/.config/spacesaver/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("spacesaver.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
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
	sample := `# SpaceSaver Configuration
# ====================
# Edit the REQUIRED settings below, then customize optional settings when needed.

# ============================================================================
# REQUIRED SETTINGS
# ============================================================================

[paths]
media_dirs = ["~/media/movies", "~/media/tv"]   # Colon-separated in MEDIA_DIRS env var; array here
work_dir = "~/.local/share/spacesaver/work"      # Scratch directory and catalog database, outside all media roots
log_dir = "~/.local/share/spacesaver/logs"       # Log files and lock file

# ============================================================================
# ENCODING
# ============================================================================

[encoding]
tv_crf = 26                    # Quality parameter passed to the encoder for TV inputs
movie_crf = 24                 # Quality parameter passed to the encoder for movie inputs
tv_res_cap = 1920               # Maximum output resolution (pixels, long side) for TV
movie_res_cap = 1920            # Maximum output resolution (pixels, long side) for movies
bitrate_floor_tv = 1500000      # Inputs below this bitrate (bps) classify SKIP
bitrate_floor_movie = 2000000   # Inputs below this bitrate (bps) classify SKIP

# ============================================================================
# SCANNER
# ============================================================================

[scanner]
rescan_interval_seconds = 600   # Seconds between scanner passes

# ============================================================================
# RECOVERY
# ============================================================================

[recovery]
salvage_duration_tolerance_seconds = 1.0  # Allowed duration drift when salvaging a crash-orphaned output

# ============================================================================
# API
# ============================================================================

[api]
bind = "127.0.0.1:7487"   # HTTP API bind address (host:port)

# ============================================================================
# DAEMON
# ============================================================================

[daemon]
shutdown_grace_period_seconds = 30  # SIGTERM-to-SIGKILL grace period for the in-flight encoder

# ============================================================================
# TOOLS
# ============================================================================

[tools]
encoder_binary = "spacesaver-encode"  # External HEVC encoder invoked per job
ffprobe_binary = "ffprobe"            # External media prober

# ============================================================================
# LOGGING
# ============================================================================

[logging]
format = "console"   # "console" or "json"
level = "info"        # info, debug, warn, error
retention_days = 60   # Days of rotated log files to retain
`

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
