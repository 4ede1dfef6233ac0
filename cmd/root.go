package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/ducktransfer/internal/config"
	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/localfs"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
	"github.com/HaiFongPan/ducktransfer/internal/tui"
)

var (
	cfgFile      string
	verbose      bool
	quiet        bool
	globalConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ducktransfer",
	Short: "A dual-pane FTP, SFTP and S3 transfer client",
	Long: `ducktransfer moves files between your machine and FTP, FTPS, SFTP or
S3-compatible storage. Without a subcommand it opens an interactive dual-pane
browser: local files on the left, the selected connection on the right.

Example usage:
  ducktransfer                                   # Interactive browser
  ducktransfer connections add lab --protocol sftp --host lab.local --user alice
  ducktransfer ls lab /var/log
  ducktransfer get lab /var/log/syslog ./syslog
  ducktransfer put backup report.pdf reports/`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		fmt.Sprintf("config file (default is %s)", config.GetDefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var err error
	globalConfig, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging()

	return nil
}

// setupLogging configures the global logger based on config and flags
func setupLogging() {
	level := globalConfig.Log.Level
	if verbose {
		level = "debug"
	} else if quiet {
		level = "error"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Invalid log level %s, using info", level)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)

	// Redirect all logs to file to prevent UI interference
	logDir := filepath.Join(os.TempDir(), "ducktransfer")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logrus.Warnf("Failed to create log directory %s: %v", logDir, err)
	} else {
		logFile := filepath.Join(logDir, "app.log")
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logrus.Warnf("Failed to open log file %s: %v", logFile, err)
		} else {
			logrus.SetOutput(file)
		}
	}

	if globalConfig.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: quiet,
			FullTimestamp:    verbose,
		})
	}
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return globalConfig
}

// runInteractive opens the connection selector and the dual-pane browser
func runInteractive() error {
	cfg := GetConfig()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	userData, err := config.LoadUserData(cfg.General.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load user data: %w", err)
	}

	local := localfs.New(afero.NewOsFs(), cfg.UI.ShowHidden)
	session := transfer.NewSession()
	opts := cfg.ConnectorOptions()
	opts.LocalFS = local.Afero()

	return tui.Run(tui.Options{
		Store:        st,
		Session:      session,
		Orchestrator: transfer.NewOrchestrator(session, local.Afero(), st),
		Local:        local,
		UserData:     userData,
		StartDir:     local.StartDir(cfg.UI.StartDir, userData.LastLocalDir),
		NewConnector: func(p connector.Protocol) (connector.Connector, error) {
			return connector.New(p, opts)
		},
	})
}
