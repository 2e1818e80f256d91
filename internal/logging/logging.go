// Package logging builds the root log15 logger used by every binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
)

// Options selects the level and output format of a logger.
type Options struct {
	Level  string // debug, info, warn, error, crit
	Format string // terminal, logfmt, json
	Output io.Writer
}

// New returns a logger tagged with the service name.
func New(service string, opts Options) (log15.Logger, error) {
	lvl := log15.LvlInfo
	if opts.Level != "" {
		var err error
		lvl, err = log15.LvlFromString(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	format, err := formatFor(opts.Format)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	logger := log15.New("service", service)
	logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(out, format)))
	return logger, nil
}

func formatFor(name string) (log15.Format, error) {
	switch strings.ToLower(name) {
	case "", "logfmt":
		return log15.LogfmtFormat(), nil
	case "json":
		return log15.JsonFormat(), nil
	case "terminal":
		return log15.TerminalFormat(), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", name)
	}
}

// Discard returns a logger that drops every record.
func Discard() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}
