package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds runtime configuration for frame preparation.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// ProcessEveryNthFrame admits one frame out of every N delivered by the
	// capture source (N >= 1). Frames in between are dropped, never queued.
	ProcessEveryNthFrame int `json:"process_every_nth_frame"`

	// ROISidePixels is the side of the centered square region of interest
	// handed to the detector. 0 disables cropping.
	ROISidePixels int `json:"roi_side_pixels"`

	// MinFrameIntervalMS is an optional time floor between accepted frames,
	// on top of the Nth-frame throttle. 0 disables it.
	MinFrameIntervalMS int `json:"min_frame_interval_ms"`

	// StatsLogIntervalS controls how often pipeline stats are logged.
	StatsLogIntervalS int `json:"stats_log_interval_s"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                false,
		ProcessEveryNthFrame: 1,
		ROISidePixels:        0,
		MinFrameIntervalMS:   0,
		StatsLogIntervalS:    5,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.ProcessEveryNthFrame < 1 {
		c.ProcessEveryNthFrame = 1
	}
	if c.ROISidePixels < 0 {
		c.ROISidePixels = 0
	}
	if c.MinFrameIntervalMS < 0 {
		c.MinFrameIntervalMS = 0
	}
	if c.StatsLogIntervalS < 1 {
		c.StatsLogIntervalS = 5
	}
	return nil
}

// MinFrameInterval returns the configured time floor as a duration.
func (c *Config) MinFrameInterval() time.Duration {
	return time.Duration(c.MinFrameIntervalMS) * time.Millisecond
}

// StatsLogInterval returns the stats logging period as a duration.
func (c *Config) StatsLogInterval() time.Duration {
	return time.Duration(c.StatsLogIntervalS) * time.Second
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
