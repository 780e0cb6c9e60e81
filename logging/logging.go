package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger. With File set, output goes to a
// rotating file instead of Output.
type Options struct {
	Debug      bool
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Output     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logrus logger for opts. The returned closer flushes the log
// file, if any.
func New(opts Options) (*log.Logger, io.Closer) {
	logger := log.New()
	closer := Configure(logger, opts)
	return logger, closer
}

// Configure applies opts to an existing logger.
func Configure(logger *log.Logger, opts Options) io.Closer {
	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(opts.File) != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		out, closer = lj, lj
	}
	logger.SetOutput(out)

	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if opts.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	return closer
}
