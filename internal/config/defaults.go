package config

const (
	defaultWorkDir           = "~/.local/share/spacesaver/work"
	defaultLogDir            = "~/.local/share/spacesaver/logs"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultAPIBind           = "127.0.0.1:7487"
	defaultTVCRF             = 26
	defaultMovieCRF          = 24
	defaultTVResCap          = 1920
	defaultMovieResCap       = 1920
	defaultBitrateFloorTV    = 1_500_000
	defaultBitrateFloorMovie = 2_000_000
	defaultRescanInterval    = 600
	defaultSalvageTolerance  = 1.0
	defaultShutdownGrace     = 30
	defaultEncoderBinary     = "spacesaver-encode"
	defaultFFProbeBinary     = "ffprobe"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Encoding: Encoding{
			TVCRF:             defaultTVCRF,
			MovieCRF:          defaultMovieCRF,
			TVResCap:          defaultTVResCap,
			MovieResCap:       defaultMovieResCap,
			BitrateFloorTV:    defaultBitrateFloorTV,
			BitrateFloorMovie: defaultBitrateFloorMovie,
		},
		Scanner: Scanner{
			RescanIntervalSeconds: defaultRescanInterval,
		},
		Recovery: Recovery{
			SalvageDurationToleranceSeconds: defaultSalvageTolerance,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Daemon: Daemon{
			ShutdownGracePeriodSeconds: defaultShutdownGrace,
		},
		Tools: Tools{
			EncoderBinary: defaultEncoderBinary,
			FFProbeBinary: defaultFFProbeBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
