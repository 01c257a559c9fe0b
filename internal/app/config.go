package app

import "fmt"

// Actions the CLI can perform.
const (
	ActionList = "list"
	ActionRead = "read"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string   // optional HCL factory configuration file
	Paths      []string // extra search paths given on the command line

	Action string // list or read
	Target string // data file to read, for the read action

	LogFormat string
	LogLevel  string
}

// NewConfig validates and returns the configuration.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Action {
	case ActionList:
	case ActionRead:
		if cfg.Target == "" {
			return nil, fmt.Errorf("the %s action requires a data file argument", ActionRead)
		}
	default:
		return nil, fmt.Errorf("unknown action %q: must be %q or %q", cfg.Action, ActionList, ActionRead)
	}

	return &cfg, nil
}
