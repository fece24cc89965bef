package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/me/examvm/internal/config"
	"github.com/me/examvm/internal/logging"
	"github.com/me/examvm/internal/store"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	debug      bool

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root cobra command for the examvm binary.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "examvm",
		Short: "Provision exam VMs ahead of time under a gateway rate limit",
		Long: "examvm creates one VM per student before each exam starts and destroys\n" +
			"them once the exam has ended, never exceeding the gateway's call rate.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.debug {
				a.v.Set("log_level", "debug")
			}
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.NewLoggerWithWriter(logging.Options{
				Level:     logging.ParseLevel(cfg.LogLevel),
				Format:    cfg.LogFormat,
				AddSource: cfg.LogSource,
			}, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")
	flags.BoolVar(&a.debug, "debug", false, "Shorthand for --log-level=debug")
	flags.String("db", "", "SQLite database path (or EXAMVM_DB_PATH env)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.Bool("log-source", false, "Add source locations to log records")
	flags.Duration("provisioning-delay", 0, "Time the gateway needs to bring up one VM")
	bindFlags(a.v, flags, map[string]string{
		"db":                 "db_path",
		"log-level":          "log_level",
		"log-format":         "log_format",
		"log-source":         "log_source",
		"provisioning-delay": "provisioning_delay",
	})

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newPlanCmd(a),
	)

	return root
}

// bindFlags maps flag names to config keys. A flag only overrides the
// config when it was set on the command line.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("cli: bind flag %s: %v", name, err))
		}
	}
}

// openStore opens and migrates the configured database.
func (a *app) openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(a.cfg.DBPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}
