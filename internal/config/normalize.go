package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	dirs := make([]string, 0, len(c.Paths.MediaDirs))
	for _, dir := range c.Paths.MediaDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.media_dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Paths.MediaDirs = dirs

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
}

func (c *Config) normalizeTools() {
	c.Tools.EncoderBinary = strings.TrimSpace(c.Tools.EncoderBinary)
	if c.Tools.EncoderBinary == "" {
		c.Tools.EncoderBinary = defaultEncoderBinary
	}
	c.Tools.FFProbeBinary = strings.TrimSpace(c.Tools.FFProbeBinary)
	if c.Tools.FFProbeBinary == "" {
		c.Tools.FFProbeBinary = defaultFFProbeBinary
	}
	if value, ok := os.LookupEnv("ENCODER_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Tools.EncoderBinary = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("FFPROBE_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFProbeBinary = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// applyEnvOverrides mirrors the env var names spec.md's external-interfaces
// table lists, so a bare environment (no TOML file) is enough to run.
func applyEnvOverrides(c *Config) {
	if value, ok := os.LookupEnv("MEDIA_DIRS"); ok && strings.TrimSpace(value) != "" {
		c.Paths.MediaDirs = strings.Split(value, ":")
	}
	if value, ok := os.LookupEnv("WORKDIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkDir = value
	}
	if value, ok := os.LookupEnv("TV_CRF"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Encoding.TVCRF = n
		}
	}
	if value, ok := os.LookupEnv("MOVIE_CRF"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Encoding.MovieCRF = n
		}
	}
	if value, ok := os.LookupEnv("TV_RES_CAP"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Encoding.TVResCap = n
		}
	}
	if value, ok := os.LookupEnv("MOVIE_RES_CAP"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Encoding.MovieResCap = n
		}
	}
	if value, ok := os.LookupEnv("BITRATE_FLOOR_TV"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Encoding.BitrateFloorTV = n
		}
	}
	if value, ok := os.LookupEnv("BITRATE_FLOOR_MOVIE"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Encoding.BitrateFloorMovie = n
		}
	}
	if value, ok := os.LookupEnv("RESCAN_INTERVAL"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Scanner.RescanIntervalSeconds = n
		}
	}
	if value, ok := os.LookupEnv("API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.API.Bind = value
	}
	if value, ok := os.LookupEnv("LOG_FORMAT"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Format = value
	}
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	if value, ok := os.LookupEnv("LOG_RETENTION_DAYS"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Logging.RetentionDays = n
		}
	}
	if value, ok := os.LookupEnv("SHUTDOWN_GRACE_PERIOD_S"); ok {
		if n, err := parseIntEnv(value); err == nil {
			c.Daemon.ShutdownGracePeriodSeconds = n
		}
	}
	if value, ok := os.LookupEnv("SALVAGE_DURATION_TOLERANCE_S"); ok {
		if f, err := parseFloatEnv(value); err == nil {
			c.Recovery.SalvageDurationToleranceSeconds = f
		}
	}
}

func parseIntEnv(value string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &n)
	return n, err
}

func parseFloatEnv(value string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &f)
	return f, err
}
