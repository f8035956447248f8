package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile   string
	targetURL string
	token     string
	verbose   bool

	// Logger is the process-wide logger, built before any subcommand
	// runs.
	Logger *zap.Logger

	// exitCode lets subcommands report partial success (2) without
	// aborting through an error.
	exitCode int
)

var RootCmd = &cobra.Command{
	Use:   "org-restore",
	Short: "A CRM snapshot restore tool",
	Long: `
   ___  ____   ____     ____  _____ ____ _____ ___  ____  _____
  / _ \|  _ \ / ___|   |  _ \| ____/ ___|_   _/ _ \|  _ \| ____|
 | | | | |_) | |  _____| |_) |  _| \___ \ | || | | | |_) |  _|
 | |_| |  _ <| |_|_____|  _ <| |___ ___) || || |_| |  _ <| |___
  \___/|_| \_\\____|   |_| \_\_____|____/ |_| \___/|_| \_\_____|

ORG-RESTORE - Snapshot restore & migration for CRM orgs
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Logger, err = buildLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if Logger != nil {
			Logger.Sync()
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./org-restore.yaml)")
	RootCmd.PersistentFlags().StringVar(&targetURL, "target-url", "", "Target org API base URL")
	RootCmd.PersistentFlags().StringVar(&token, "token", "", "Target org API token")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	viper.BindPFlag("target.url", RootCmd.PersistentFlags().Lookup("target-url"))
	viper.BindPFlag("target.token", RootCmd.PersistentFlags().Lookup("token"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			exePath := filepath.Dir(ex)
			viper.AddConfigPath(exePath)
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("org-restore")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
