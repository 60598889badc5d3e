package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autumnhq/autumn/internal/api"
	"github.com/autumnhq/autumn/internal/output"
	"github.com/autumnhq/autumn/internal/registry"
	"github.com/autumnhq/autumn/internal/session"
	"github.com/autumnhq/autumn/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui           *output.UI
	historyStore store.Store

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "autumn",
	Short: "Autumn - track work sessions with reminders and auto-stop",
	Long: `autumn tracks work sessions against the Autumn session service.
It can nag you while a timer runs, stop a forgotten timer after a
deadline, and supervise those schedules from detached worker processes.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/autumn/config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("autumn %s (%s, %s)\n", buildVersion, buildCommit, buildDate)
		},
	})
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "autumn")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("AUTUMN")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "autumn")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("history_db_path", filepath.Join(defaultConfigDir, "autumn.db"))
	viper.SetDefault("api.base_url", "http://localhost:8000")
	viper.SetDefault("api.token", "")
	viper.SetDefault("notify.title", "Autumn")
	viper.SetDefault("remind.poll", "30s")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The history store is opened lazily; config/version commands run
	// without touching the database.
}

// registryPath is where the reminder worker registry lives.
func registryPath() string {
	return filepath.Join(viper.GetString("state_dir"), "reminders.json")
}

// registryDir is the directory holding the registry file.
func registryDir() string {
	return filepath.Dir(registryPath())
}

// getRegistry returns the reminder registry bound to the configured path.
func getRegistry() *registry.Registry {
	return registry.New(registryPath())
}

// getClient returns a session service client from the configured endpoint.
func getClient() *api.Client {
	return api.NewClient(viper.GetString("api.base_url"), viper.GetString("api.token"))
}

// getOracle returns the session liveness oracle.
func getOracle() *session.Oracle {
	return session.NewOracle(getClient())
}

// getHistory returns the shared notification history store, initializing
// it on first call.
func getHistory() (store.Store, error) {
	if historyStore != nil {
		return historyStore, nil
	}

	dbPath := viper.GetString("history_db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	historyStore = s
	return historyStore, nil
}

// historyOrNil opens the history store, degrading to nil (no recording)
// when it cannot be opened. Supervision must not die over bookkeeping.
func historyOrNil() store.Store {
	s, err := getHistory()
	if err != nil {
		ui.VerboseLog("history store unavailable: %v", err)
		return nil
	}
	return s
}
