package bb

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Defaults mirroring the original plugin's configuration fallbacks.
const (
	// Path of the external staging tool when the host config leaves it unset.
	DefaultToolPath = "/usr/sbin/lod"
	// Cluster-wide default tool configuration; its presence lets a setup
	// directive omit mdtdevs=/ostdevs=.
	DefaultConfPath = "/etc/lod.conf"
	// Timeout, in seconds, applied to each non-setup-specific ("other")
	// tool invocation.
	DefaultOtherTimeoutSec = 300

	DefaultPoolWorkers = 16
	DefaultQueueDepth  = 256
)

// Config is the controller configuration. The host hands us the parsed
// text; loading config files is its problem.
type Config struct {
	ToolPath        string `json:"toolPath"`
	ConfPath        string `json:"confPath"`
	OtherTimeoutSec int    `json:"otherTimeoutSec"`

	// Bounds for the per-phase worker pools.
	StageInWorkers  int `json:"stageInWorkers"`
	StageOutWorkers int `json:"stageOutWorkers"`
	QueueDepth      int `json:"queueDepth"`
}

func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills zero-valued fields with the defaults above.
func (c Config) WithDefaults() Config {
	if c.ToolPath == "" {
		c.ToolPath = DefaultToolPath
	}
	if c.ConfPath == "" {
		c.ConfPath = DefaultConfPath
	}
	if c.OtherTimeoutSec <= 0 {
		c.OtherTimeoutSec = DefaultOtherTimeoutSec
	}
	if c.StageInWorkers <= 0 {
		c.StageInWorkers = DefaultPoolWorkers
	}
	if c.StageOutWorkers <= 0 {
		c.StageOutWorkers = DefaultPoolWorkers
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}

// OtherTimeout is the per-invocation timeout for stage/teardown commands.
func (c Config) OtherTimeout() time.Duration {
	return time.Duration(c.OtherTimeoutSec) * time.Second
}

// ParseConfig unmarshals JSON config text. Empty text yields defaults.
func ParseConfig(text []byte) (Config, error) {
	var c Config
	if len(text) == 0 {
		return c.WithDefaults(), nil
	}
	if err := json.Unmarshal(text, &c); err != nil {
		return c, errors.Wrap(err, "couldn't parse burst buffer config")
	}
	return c.WithDefaults(), nil
}
