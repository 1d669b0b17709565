// Package cmd holds the spineview command line.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "spineview",
	Short: "Spine skeletal animation viewer",
	Long: `spineview loads Spine atlas and skeleton files and plays them side by
side in one window. Characters, canvases and timings come from a YAML
config file that is reloaded on change.`,
	SilenceUsage: true,
	RunE:         runViewer,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/spineview/spineview.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
}

// bindFlags lets the logging flags override the config file.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	if err := v.BindPFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	return v.BindPFlag("logging.file", cmd.Flags().Lookup("log-file"))
}
