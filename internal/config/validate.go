package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateRecovery(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.MediaDirs) == 0 {
		return errors.New("paths.media_dirs must include at least one directory")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	for _, dir := range c.Paths.MediaDirs {
		if dir == c.Paths.WorkDir {
			return errors.New("paths.work_dir must not equal a media root")
		}
		if isSubPath(dir, c.Paths.WorkDir) || isSubPath(c.Paths.WorkDir, dir) {
			return errors.New("paths.work_dir must not be nested inside a media root or vice versa")
		}
	}
	for i, a := range c.Paths.MediaDirs {
		for j, b := range c.Paths.MediaDirs {
			if i == j {
				continue
			}
			if isSubPath(a, b) {
				return fmt.Errorf("paths.media_dirs: %q and %q must be disjoint", a, b)
			}
		}
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.TVCRF <= 0 || c.Encoding.MovieCRF <= 0 {
		return errors.New("encoding.tv_crf and encoding.movie_crf must be positive")
	}
	if c.Encoding.TVResCap <= 0 || c.Encoding.MovieResCap <= 0 {
		return errors.New("encoding.tv_res_cap and encoding.movie_res_cap must be positive")
	}
	if c.Encoding.BitrateFloorTV < 0 || c.Encoding.BitrateFloorMovie < 0 {
		return errors.New("encoding.bitrate_floor_tv and encoding.bitrate_floor_movie must be >= 0")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if c.Scanner.RescanIntervalSeconds <= 0 {
		return errors.New("scanner.rescan_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRecovery() error {
	if c.Recovery.SalvageDurationToleranceSeconds < 0 {
		return errors.New("recovery.salvage_duration_tolerance_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.ShutdownGracePeriodSeconds <= 0 {
		return errors.New("daemon.shutdown_grace_period_seconds must be positive")
	}
	return nil
}

// isSubPath reports whether child is equal to or nested under parent using
// plain path-prefix comparison on already-expanded absolute paths.
func isSubPath(parent, child string) bool {
	if parent == "" || child == "" || parent == child {
		return false
	}
	if len(child) <= len(parent) {
		return false
	}
	if child[:len(parent)] != parent {
		return false
	}
	return child[len(parent)] == '/'
}
