// Package config loads and validates aligner configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Aligner, Scoring, Index, Pairing, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Aligner AlignerConfig `yaml:"aligner"`
	Scoring ScoringConfig `yaml:"scoring"`
	Index   IndexConfig   `yaml:"index"`
	Pairing PairingConfig `yaml:"pairing"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AlignerConfig controls the search strategy of the alignment core.
type AlignerConfig struct {
	MinIntronLen       int  `yaml:"minIntronLen"`
	MaxIntronLen       int  `yaml:"maxIntronLen"`
	KHits              int  `yaml:"khits"`
	Secondary          bool `yaml:"secondary"`
	NoSplicedAlignment bool `yaml:"noSplicedAlignment"`
	Threads            int  `yaml:"threads"`
	NoFw               bool `yaml:"noFw"`
	NoRc               bool `yaml:"noRc"`
	ThreadRidsMindist  int  `yaml:"threadRidsMindist"`
}

// ScoringConfig holds the alignment penalties. All penalties are positive
// magnitudes; the scoring engine subtracts them.
type ScoringConfig struct {
	Match          int     `yaml:"match"`
	MismatchMax    int     `yaml:"mismatchMax"`
	MismatchMin    int     `yaml:"mismatchMin"`
	NPenalty       int     `yaml:"nPenalty"`
	ReadGapOpen    int     `yaml:"readGapOpen"`
	ReadGapExtend  int     `yaml:"readGapExtend"`
	RefGapOpen     int     `yaml:"refGapOpen"`
	RefGapExtend   int     `yaml:"refGapExtend"`
	CanonicalSpl   int     `yaml:"canonicalSplice"`
	NoncanSpl      int     `yaml:"noncanonicalSplice"`
	ConflictSpl    int     `yaml:"conflictSplice"`
	ScoreMinConst  float64 `yaml:"scoreMinConst"`
	ScoreMinLinear float64 `yaml:"scoreMinLinear"`
}

// IndexConfig controls FM-index construction parameters.
type IndexConfig struct {
	FtabChars      int `yaml:"ftabChars"`
	LocalFtabChars int `yaml:"localFtabChars"`
	TileLen        int `yaml:"tileLen"`
	TileOverlap    int `yaml:"tileOverlap"`
	OccInterval    int `yaml:"occInterval"`
}

// PairingConfig encodes the expected library layout of paired-end input.
type PairingConfig struct {
	Mate1Fw bool `yaml:"mate1Fw"`
	Mate2Fw bool `yaml:"mate2Fw"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with production-ready defaults.
func Default() *Config {
	return &Config{
		Aligner: AlignerConfig{
			MinIntronLen: 20,
			MaxIntronLen: 500000,
			KHits:        5,
			Threads:      1,
		},
		Scoring: ScoringConfig{
			Match:          0,
			MismatchMax:    6,
			MismatchMin:    2,
			NPenalty:       1,
			ReadGapOpen:    5,
			ReadGapExtend:  3,
			RefGapOpen:     5,
			RefGapExtend:   3,
			CanonicalSpl:   0,
			NoncanSpl:      12,
			ConflictSpl:    1000,
			ScoreMinConst:  -0.6,
			ScoreMinLinear: -0.6,
		},
		Index: IndexConfig{
			FtabChars:      10,
			LocalFtabChars: 6,
			TileLen:        1 << 16,
			TileOverlap:    1024,
			OccInterval:    128,
		},
		Pairing: PairingConfig{
			Mate1Fw: true,
			Mate2Fw: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

func (c *Config) validate() error {
	if c.Aligner.MinIntronLen <= 0 || c.Aligner.MaxIntronLen <= c.Aligner.MinIntronLen {
		return fmt.Errorf("invalid intron bounds [%d, %d]", c.Aligner.MinIntronLen, c.Aligner.MaxIntronLen)
	}
	if c.Aligner.KHits <= 0 {
		return fmt.Errorf("khits must be positive, got %d", c.Aligner.KHits)
	}
	if c.Index.TileLen <= c.Index.TileOverlap {
		return fmt.Errorf("tile length %d must exceed tile overlap %d", c.Index.TileLen, c.Index.TileOverlap)
	}
	return nil
}

// applyEnvOverrides reads RH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RH_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aligner.Threads = n
		}
	}
	if v := os.Getenv("RH_MAX_INTRON_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aligner.MaxIntronLen = n
		}
	}
	if v := os.Getenv("RH_MIN_INTRON_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aligner.MinIntronLen = n
		}
	}
	if v := os.Getenv("RH_KHITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aligner.KHits = n
		}
	}
	if v := os.Getenv("RH_NO_SPLICED_ALIGNMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Aligner.NoSplicedAlignment = b
		}
	}
	if v := os.Getenv("RH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RH_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = n
		}
	}
}
