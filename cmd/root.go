package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loog-project/cattree/internal/service"
	"github.com/loog-project/cattree/internal/store"
	bboltStore "github.com/loog-project/cattree/internal/store/bbolt"
)

var (
	// persistent flags
	cfgFile          string
	storeFile        string
	enableDebugMode  bool
	truncateDebugLog bool
	noDurableSync    bool
	snapshotInterval uint64

	debugLogFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "cattree",
	Short: "Catalog Tree Revision Tool",
	Long: `cattree records versions of catalog trees (databases, tables, columns,
indexes, procedures) as either a full snapshot or a structural diff against the
previous version. Stored revisions can be restored, diffed, filtered, replayed
through independent replicas and explored in a Terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupDebugLog()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeDebugLog()
	},
}

var setupLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
	Timestamp().
	Logger()

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	cobra.OnInitialize(initConfig)

	// global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.cattree.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeFile, "store", "catalog.cattree",
		"Path to the revision store file")
	rootCmd.PersistentFlags().BoolVar(&enableDebugMode, "debug", false,
		"Enable debug mode, which will print additional information to the debug.log file")
	rootCmd.PersistentFlags().BoolVar(&truncateDebugLog, "truncate-debug", false,
		"Truncate the debug.log file on startup, if it exists")
	rootCmd.PersistentFlags().BoolVar(&noDurableSync, "no-durable-sync", false,
		"Skip fsync on every commit to improve throughput (unsafe on crashes)")
	rootCmd.PersistentFlags().Uint64VarP(&snapshotInterval, "snapshot-interval", "s", 8,
		"Create a full snapshot after this many patches")

	// allow some flags to be set via environment variables / config file
	for _, name := range []string{"store", "debug", "truncate-debug", "no-durable-sync", "snapshot-interval"} {
		mustBind(name, viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)))
	}
}

func mustBind(name string, err error) {
	if err != nil {
		setupLog.Fatal().Err(err).Msgf("Cannot bind flag %q", name)
	}
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cattree")
	}

	viper.SetEnvPrefix("cattree")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		setupLog.Info().Msgf("Using config file: %s", viper.ConfigFileUsed())
	}

	storeFile = viper.GetString("store")
	enableDebugMode = viper.GetBool("debug")
	truncateDebugLog = viper.GetBool("truncate-debug")
	noDurableSync = viper.GetBool("no-durable-sync")
	snapshotInterval = viper.GetUint64("snapshot-interval")
}

// setupDebugLog points the global logger at debug.log in debug mode.
func setupDebugLog() error {
	if !enableDebugMode {
		// by default, we shouldn't log anything as this would break our output.
		log.Logger = zerolog.Nop()
		return nil
	}
	setupLog.Info().Msg("Debug mode is enabled, setting up debug logger...")

	fileMode := os.O_CREATE | os.O_WRONLY
	if truncateDebugLog {
		fileMode |= os.O_TRUNC
	} else {
		fileMode |= os.O_APPEND
	}
	logFile, err := os.OpenFile("debug.log", fileMode, 0o644)
	if err != nil {
		return err
	}
	debugLogFile = logFile

	log.Logger = zerolog.New(logFile).With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.DebugLevel)
	return nil
}

func closeDebugLog() {
	if debugLogFile == nil {
		return
	}
	if err := debugLogFile.Close(); err != nil {
		setupLog.Error().Err(err).Msg("Error closing debug log file")
	}
	debugLogFile = nil
}

// openStore opens the revision store and a tracker on top of it. The
// returned func closes both.
func openStore() (store.RevisionStore, *service.TrackerService, func(), error) {
	rs, err := bboltStore.New(storeFile, nil, !noDurableSync)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Debug().Str("store-file", storeFile).Bool("durable", !noDurableSync).Msg("store opened")

	svc := service.NewTrackerService(rs, snapshotInterval)
	return rs, svc, func() {
		svc.Close()
		if err := rs.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing store")
		}
	}, nil
}
