package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/opaudit/opaudit/pkg/authority"
	"github.com/opaudit/opaudit/pkg/config"
	"github.com/opaudit/opaudit/pkg/telemetry"
)

var (
	opPath    string
	rateLimit int
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "opaudit",
	Short: "opaudit CLI",
	Long:  `Audits vault access-control state through the authority CLI and reports who can reach which secrets.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.Load()
	rootCmd.PersistentFlags().StringVar(&opPath, "op-path", defaults.OpPath, "Path to the authority CLI binary")
	rootCmd.PersistentFlags().IntVar(&rateLimit, "rate-limit", defaults.RatePerSec, "Max authority calls per second (0 = unlimited)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", defaults.LogFormat, "Log format (text or json)")
}

func initConfig() {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")
	viper.SetConfigName(".opaudit")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("OPAUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	}
	applyConfig(rootCmd)
}

// applyConfig fills every flag the user did not set on the command line from
// the config file and environment, so persisted settings behave like
// per-user defaults. Flags set explicitly always win; viper.IsSet keeps an
// explicit zero in the file (e.g. rate-limit: 0) distinct from unset.
func applyConfig(cmd *cobra.Command) {
	apply := func(f *pflag.Flag) {
		if f.Changed || !viper.IsSet(f.Name) {
			return
		}
		if err := f.Value.Set(viper.GetString(f.Name)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid config value for %s: %v\n", f.Name, err)
		}
	}
	cmd.Flags().VisitAll(apply)
	cmd.PersistentFlags().VisitAll(apply)
	for _, sub := range cmd.Commands() {
		applyConfig(sub)
	}
}

func newLogger() telemetry.Logger {
	return telemetry.NewSlogAdapter(logFormat, logLevel)
}

func newClient(logger telemetry.Logger, metrics telemetry.Metrics) *authority.Client {
	runner := authority.NewExecRunner(opPath, rateLimit)
	return authority.NewClient(runner, logger, metrics)
}
