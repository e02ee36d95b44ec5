package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rjboer/GoCatman/catman"
	"github.com/rjboer/GoCatman/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.LookupEnv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("apdump: %v", err)
	}
}

// openFile is swapped out in tests.
var openFile = catman.Open

type cliConfig struct {
	workers     int
	logLevel    string
	logFormat   string
	unitSeconds bool
	prompt      bool
	bigEndian   bool
	stats       bool
	configPath  string
	files       []string
}

// fileConfig is the optional TOML config. Its values are the defaults that
// environment variables and flags override.
type fileConfig struct {
	Workers     int    `toml:"workers"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	UnitSeconds bool   `toml:"unit_seconds"`
	Prompt      bool   `toml:"prompt"`
	BigEndian   bool   `toml:"big_endian"`
	Stats       bool   `toml:"stats"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Workers:   0,
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, lookup func(string) (string, bool)) error {
	defaults, err := loadConfig(configPath(args, lookup))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := parseConfig(args, lookup, defaults, stderr)
	if err != nil {
		return err
	}
	if len(cfg.files) == 0 {
		return errors.New("usage: apdump [flags] file...")
	}

	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return err
	}
	logger := logging.New(level, format, stderr)

	dcfg := decodeConfig(cfg, stdin, stdout)
	dcfg.Logger = logger

	for _, path := range cfg.files {
		f, err := openFile(ctx, path, dcfg)
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "%s (%s, %d channels, %d groups)\n",
			f.Name(), f.Date().Format(time.RFC3339), len(f.Channels()), len(f.Groups()))
		if err := f.WriteSummary(stdout); err != nil {
			return err
		}
		if cfg.stats {
			writeStats(stdout, f)
		}
		if n := len(f.Diagnostics()); n > 0 {
			logger.Warn("file decoded with diagnostics", logging.F("file", f.Name()), logging.F("count", n))
		}
	}
	return nil
}

func decodeConfig(cfg cliConfig, stdin io.Reader, stdout io.Writer) catman.Config {
	var dcfg catman.Config
	switch {
	case cfg.workers < 0:
		dcfg.Pool = catman.NewPool(0)
	case cfg.workers > 1:
		dcfg.Pool = catman.NewPool(cfg.workers)
	}
	if cfg.bigEndian {
		dcfg.ByteOrder = binary.BigEndian
	}
	switch {
	case cfg.prompt:
		dcfg.Resolver = catman.NewPromptResolver(stdin, stdout)
	case cfg.unitSeconds:
		dcfg.Resolver = catman.SecondsUnitResolver{}
	}
	return dcfg
}

func writeStats(w io.Writer, f *catman.File) {
	for _, ch := range f.Channels() {
		st := ch.Stats()
		fmt.Fprintf(w, "%s [%s]: n=%d min=%g max=%g mean=%g std=%g\n",
			ch.Name(), ch.Unit(), st.Count, st.Min, st.Max, st.Mean, st.StdDev)
	}
}

func parseConfig(args []string, lookup func(string) (string, bool), defaults fileConfig, usage io.Writer) (cliConfig, error) {
	cfg := cliConfig{}
	fs := flag.NewFlagSet("apdump", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.IntVar(&cfg.workers, "workers", envInt(lookup, "APDUMP_WORKERS", defaults.Workers), "Payload decode workers (0 or 1 sequential, negative uses all CPUs)")
	fs.StringVar(&cfg.logLevel, "log-level", envString(lookup, "APDUMP_LOG_LEVEL", defaults.LogLevel), "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.logFormat, "log-format", envString(lookup, "APDUMP_LOG_FORMAT", defaults.LogFormat), "Log format (text|json)")
	fs.BoolVar(&cfg.unitSeconds, "unit-seconds", envBool(lookup, "APDUMP_UNIT_SECONDS", defaults.UnitSeconds), "Accept the first channel with unit s as time base")
	fs.BoolVar(&cfg.prompt, "prompt", envBool(lookup, "APDUMP_PROMPT", defaults.Prompt), "Ask on stdin which unit-s channel is the time base")
	fs.BoolVar(&cfg.bigEndian, "big-endian", envBool(lookup, "APDUMP_BIG_ENDIAN", defaults.BigEndian), "Decode big-endian files")
	fs.BoolVar(&cfg.stats, "stats", envBool(lookup, "APDUMP_STATS", defaults.Stats), "Print per-channel statistics")
	fs.StringVar(&cfg.configPath, "config", envString(lookup, "APDUMP_CONFIG", ""), "Optional TOML config file")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	cfg.files = fs.Args()
	return cfg, nil
}

// configPath finds the config file before the full flag set is parsed, since
// the file supplies that flag set's defaults.
func configPath(args []string, lookup func(string) (string, bool)) string {
	path := envString(lookup, "APDUMP_CONFIG", "")
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, val, hasVal := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "config" {
			continue
		}
		if hasVal {
			path = val
		} else if i+1 < len(args) {
			path = args[i+1]
			i++
		}
	}
	return path
}

func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

func envInt(lookup func(string) (string, bool), key string, def int) int {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(lookup func(string) (string, bool), key string, def bool) bool {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}
