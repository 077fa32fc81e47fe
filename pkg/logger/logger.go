// Package logx configures the process-wide zerolog logger. Import
// pkg/logger/autoload for flag-free setup from the environment.
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `default:"loan-orchestrator"`
}

var DefaultConfig = &Config{
	Service: "loan-orchestrator",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global logger. Output is JSON on stdout unless pretty
// formatting is requested; every line carries the service name.
func Init(opts ...Config) {
	conf := safe(opts...)

	var base zerolog.Logger
	if conf.PrettyFormat {
		base = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		base = zerolog.New(os.Stdout)
	}

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}

	log.Logger = base.Level(level).With().
		Timestamp().
		Str("service", conf.Service).
		Caller().
		Stack().
		Logger()
}
