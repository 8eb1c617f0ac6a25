package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	transportKey      = "transport"
	listenAddrKey     = "listen-addr"
	vsockPortKey      = "vsock-port"
	maxWorkersKey     = "max-workers"
	ownerKey          = "owner"
	enforceReserveKey = "enforce-reserve"
	snapshotPathKey   = "snapshot-path"
	signingKeyPathKey = "signing-key-path"
	requestTimeoutKey = "request-timeout"
	logLevelKey       = "log-level"
	logFormatKey      = "log-format"
	envFileKey        = "env-file"

	envPrefix      = "LEDGER"
	defaultEnvFile = ".env"
)

const (
	TransportTCP   = "tcp"
	TransportVsock = "vsock"
)

// Config is the daemon configuration. Values come from command line flags,
// then LEDGER_* environment variables (optionally loaded from a .env file),
// then the flag defaults.
type Config struct {
	Transport      string
	ListenAddr     string
	VsockPort      uint32
	MaxWorkers     int
	Owner          string
	EnforceReserve bool
	SnapshotPath   string
	SigningKeyPath string
	RequestTimeout time.Duration
	LogLevel       logrus.Level
	LogFormat      string
}

func buildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ledgerd", pflag.ContinueOnError)

	fs.String(transportKey, TransportTCP, "Listener transport: tcp or vsock")
	fs.String(listenAddrKey, "127.0.0.1:5000", "TCP listen address")
	fs.Uint32(vsockPortKey, 5000, "vsock listen port")
	fs.Int(maxWorkersKey, 16, "Maximum concurrently served connections")
	fs.String(ownerKey, "", "Ledger owner identity (required unless restored from a snapshot)")
	fs.Bool(enforceReserveKey, false, "Leave products whose highest bid is below the asking price out of the winners")
	fs.String(snapshotPathKey, "", "Snapshot file restored at start and written at shutdown")
	fs.String(signingKeyPathKey, "", "PEM file of the settlement signing key (generated if missing)")
	fs.Duration(requestTimeoutKey, 30*time.Second, "Per-connection read deadline")
	fs.String(logLevelKey, "info", "Log level: trace, debug, info, warn, error")
	fs.String(logFormatKey, "text", "Log format: text or json")
	fs.String(envFileKey, defaultEnvFile, "Optional .env file with LEDGER_* variables")

	return fs
}

// LoadConfig parses args and the environment into a Config.
func LoadConfig(args []string) (*Config, error) {
	fs := buildFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := fs.GetString(envFileKey)
	if err := loadEnvFile(envFile, fs.Changed(envFileKey)); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	level, err := logrus.ParseLevel(v.GetString(logLevelKey))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", logLevelKey, err)
	}

	cfg := &Config{
		Transport:      strings.ToLower(v.GetString(transportKey)),
		ListenAddr:     v.GetString(listenAddrKey),
		VsockPort:      v.GetUint32(vsockPortKey),
		MaxWorkers:     v.GetInt(maxWorkersKey),
		Owner:          v.GetString(ownerKey),
		EnforceReserve: v.GetBool(enforceReserveKey),
		SnapshotPath:   v.GetString(snapshotPathKey),
		SigningKeyPath: v.GetString(signingKeyPathKey),
		RequestTimeout: v.GetDuration(requestTimeoutKey),
		LogLevel:       level,
		LogFormat:      strings.ToLower(v.GetString(logFormatKey)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads LEDGER_* variables without overriding ones already set. A
// missing default file is not an error; a missing explicitly requested one is.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// Validate checks the configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTCP:
		if c.ListenAddr == "" {
			return fmt.Errorf("%s is required for tcp transport", listenAddrKey)
		}
	case TransportVsock:
		if c.VsockPort == 0 {
			return fmt.Errorf("%s is required for vsock transport", vsockPortKey)
		}
	default:
		return fmt.Errorf("invalid %s %q (must be tcp or vsock)", transportKey, c.Transport)
	}

	if c.MaxWorkers <= 0 {
		return fmt.Errorf("invalid %s %d (must be positive)", maxWorkersKey, c.MaxWorkers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid %s %s (must be positive)", requestTimeoutKey, c.RequestTimeout)
	}
	if c.Owner == "" && c.SnapshotPath == "" {
		return fmt.Errorf("%s is required when no %s is configured", ownerKey, snapshotPathKey)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid %s %q (must be text or json)", logFormatKey, c.LogFormat)
	}
	return nil
}

// newLogger builds the daemon logger from the configuration
func newLogger(cfg *Config) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
