package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tsp-search/internal/database"
	"tsp-search/internal/logging"
	"tsp-search/internal/routing"
	"tsp-search/internal/session"
	"tsp-search/internal/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the configuration shared by every subcommand. Values resolve
// from flags, then TSP_* environment variables, then the config file.
type cli struct {
	conf *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{conf: viper.New()}

	root := &cobra.Command{
		Use:           "tsp-search",
		Short:         "Random-restart search for short closed tours",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ~/.tsp-search/config.yaml when present)")
	pf.String("db", "", "SQLite database path (default ~/.tsp-search/data.db)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("dev", false, "human-readable development logging")

	root.AddCommand(
		c.serveCmd(),
		c.runCmd(),
		c.watchCmd(),
		c.runsCmd(),
	)
	return root
}

// searchFlags registers the engine and scheduler flags used by commands
// that build their own session
func searchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("tick", time.Second, "scheduler period between search steps")
	f.Int64("seed", 0, "random seed (0 seeds from the clock)")
	f.String("candidate", string(routing.CandidateFullSet), "candidate mode: full or incumbent")
	f.String("lookup", string(routing.LookupLenient), "unknown city ids: lenient or strict")
	f.String("record", string(routing.RecordCandidate), "history records: candidate or incumbent")
}

func (c *cli) load(cmd *cobra.Command) error {
	if err := c.conf.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.conf.SetEnvPrefix("TSP")
	c.conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.conf.AutomaticEnv()

	path := c.conf.GetString("config")
	if path == "" {
		if p, err := database.GetConfigFilePath(); err == nil {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path == "" {
		return nil
	}
	c.conf.SetConfigFile(path)
	if err := c.conf.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func (c *cli) logger(outputs ...string) (*zap.Logger, error) {
	return logging.New(c.conf.GetString("log-level"), c.conf.GetBool("dev"), outputs...)
}

func (c *cli) sessionConfig() (session.Config, error) {
	engine, err := routing.ParseEngineConfig(
		c.conf.GetString("candidate"),
		c.conf.GetString("lookup"),
		c.conf.GetString("record"),
	)
	if err != nil {
		return session.Config{}, err
	}
	tick := c.conf.GetDuration("tick")
	if tick <= 0 {
		return session.Config{}, fmt.Errorf("%w: tick must be positive", routing.ErrInvalidConfig)
	}
	return session.Config{
		Engine: engine,
		Tick:   tick,
		Seed:   c.conf.GetInt64("seed"),
	}, nil
}

func (c *cli) dbPath() (string, error) {
	if p := c.conf.GetString("db"); p != "" {
		return p, nil
	}
	return database.GetDefaultDBPath()
}

func (c *cli) openStore(logger *zap.Logger) (*sqlite.Store, error) {
	path, err := c.dbPath()
	if err != nil {
		return nil, err
	}
	return sqlite.New(path, logger.Named("sqlite"))
}
