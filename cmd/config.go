package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/spf13/pflag"
)

// ErrInvalidConfig is returned when the command line does not describe a
// runnable simulation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that provide defaults for operational flags.
const (
	EnvLogLevel    = "CSIM_LOG_LEVEL"
	EnvRecordDB    = "CSIM_RECORD_DB"
	EnvMonitorPort = "CSIM_MONITOR_PORT"
)

const defaultLogLevel = "warning"

// Config holds everything a single simulation run needs.
type Config struct {
	Geometry    cache.Geometry
	TracePath   string
	Verbose     bool
	ResultsPath string

	Record   bool
	RecordDB string

	Monitor     bool
	MonitorPort int
	OpenBrowser bool

	LogLevel string
}

// Validate checks the configuration before anything is allocated.
func (c Config) Validate() error {
	if c.TracePath == "" {
		return fmt.Errorf("%w: trace file is required", ErrInvalidConfig)
	}

	err := validateGeometry(c.Geometry)
	if err != nil {
		return err
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return fmt.Errorf("%w: monitor port %d out of range",
			ErrInvalidConfig, c.MonitorPort)
	}

	if c.OpenBrowser && !c.Monitor {
		return fmt.Errorf("%w: --open-browser requires --monitor",
			ErrInvalidConfig)
	}

	return nil
}

// validateGeometry only rejects malformed geometries. Geometries that are too
// large are refused later by the cache builder.
func validateGeometry(g cache.Geometry) error {
	err := g.Validate()
	if errors.Is(err, cache.ErrInvalidGeometry) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// envDefaults are the defaults of the operational flags, read from the
// environment and an optional .env file.
type envDefaults struct {
	logLevel    string
	recordDB    string
	monitorPort int
}

func loadEnvDefaults() envDefaults {
	// A missing .env file is normal.
	_ = godotenv.Load()

	d := envDefaults{
		logLevel: os.Getenv(EnvLogLevel),
		recordDB: os.Getenv(EnvRecordDB),
	}

	if d.logLevel == "" {
		d.logLevel = defaultLogLevel
	}

	port, err := strconv.Atoi(os.Getenv(EnvMonitorPort))
	if err == nil {
		d.monitorPort = port
	}

	return d
}

func bindGeometryFlags(fs *pflag.FlagSet, g *cache.Geometry) {
	fs.IntVarP(&g.SetBits, "set-bits", "s", 0,
		"number of set index bits (S = 2^s sets)")
	fs.IntVarP(&g.Lines, "lines", "E", 0,
		"number of lines per set (associativity)")
	fs.IntVarP(&g.BlockBits, "block-bits", "b", 0,
		"number of block offset bits (B = 2^b bytes per block)")
}

func bindOperationalFlags(fs *pflag.FlagSet, c *Config, d envDefaults) {
	fs.StringVar(&c.ResultsPath, "results", "",
		"also write \"<hits> <misses> <evictions>\" to this file")
	fs.BoolVar(&c.Record, "record", false,
		"record every access into a SQLite database")
	fs.StringVar(&c.RecordDB, "record-db", d.recordDB,
		"database name, .sqlite3 is appended (env "+EnvRecordDB+")")
	fs.BoolVar(&c.Monitor, "monitor", false,
		"start the monitoring server")
	fs.IntVar(&c.MonitorPort, "monitor-port", d.monitorPort,
		"port of the monitoring server, random if 0 (env "+EnvMonitorPort+")")
	fs.BoolVar(&c.OpenBrowser, "open-browser", false,
		"open the monitoring server in the browser")
	fs.StringVar(&c.LogLevel, "log-level", d.logLevel,
		"log level (env "+EnvLogLevel+")")
}
