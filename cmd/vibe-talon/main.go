// Package main provides the vibe-talon command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-talon/internal/config"
	"github.com/inodb/vibe-talon/internal/store"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vibe-talon",
		Short: "Assign long reads to known and novel transcripts",
		Long: `vibe-talon identifies aligned long reads against a registry of known genes,
transcripts, splice vertices and exon/intron edges. Reads that match no known
transcript get novel, deduplicated identities that are added to the registry.`,
		Version:      fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config-file", "", "Config file (default: ~/.vibe-talon.yaml)")
	pf.String("db", "", "Registry database path")
	pf.String("driver", store.DriverDuckDB, "Database driver: duckdb or sqlite3")
	pf.String("build", "", "Genome build, e.g. hg38")
	pf.Int("batch-size", store.DefaultBatchSize, "Rows per INSERT statement")
	pf.BoolP("verbose", "v", false, "Log at debug level")

	mustBind("database", pf.Lookup("db"))
	mustBind("driver", pf.Lookup("driver"))
	mustBind("build", pf.Lookup("build"))
	mustBind("batch-size", pf.Lookup("batch-size"))
	mustBind("verbose", pf.Lookup("verbose"))

	root.AddCommand(newInitCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// initConfig reads the config file, if any, and registers defaults and
// environment overrides.
func initConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".vibe-talon")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// loadConfig decodes the settings and checks that a database and genome
// build were given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("no database given (use --db or set database in the config file)")
	}
	if cfg.Build == "" {
		return nil, fmt.Errorf("no genome build given (use --build or set build in the config file)")
	}
	return cfg, nil
}

// newLogger builds a console logger at the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if viper.GetBool("verbose") {
		level = "debug"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// openStore opens the configured registry database.
func openStore(cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	logger.Debug("opening database", zap.String("path", cfg.Database), zap.String("driver", cfg.Driver))
	s, err := store.Open(cfg.Driver, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.SetBatchSize(cfg.BatchSize)
	s.SetLogger(logger)
	return s, nil
}
