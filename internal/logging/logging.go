package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flipsol-keeper/internal/config"
)

var (
	mu     sync.RWMutex
	writer io.Writer = os.Stdout
)

// Init installs the global zerolog logger. When cfg.File is set, records go to
// both stdout and a size-limited file.
func Init(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var base io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := newRotatingFile(cfg.File, cfg.MaxMB, cfg.Backups)
		if err != nil {
			return err
		}
		base = io.MultiWriter(os.Stdout, fw)
	}

	var output = base
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: base}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	mu.Lock()
	writer = base
	mu.Unlock()
	return nil
}

// Writer returns the raw sink behind the global logger, for handlers that
// format their own records.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return writer
}
