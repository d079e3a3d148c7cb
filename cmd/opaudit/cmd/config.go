package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage persisted CLI settings",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show every persisted setting",
	Run: func(cmd *cobra.Command, args []string) {
		settings := viper.AllSettings()
		if len(settings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No configuration set")
			return
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, settings[k])
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Persist a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]
		viper.Set(key, value)
		if err := writeConfigFile(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", key, value)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one persisted setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		val := viper.Get(args[0])
		if val == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not set")
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
	},
}

// writeConfigFile persists the current settings. The very first write has no
// config file on disk; viper reports that as ConfigFileNotFoundError (not a
// fs.PathError), so give it the default path in the home directory and retry.
func writeConfigFile() error {
	err := viper.WriteConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	home, herr := os.UserHomeDir()
	if herr != nil {
		home = "."
	}
	viper.SetConfigFile(filepath.Join(home, ".opaudit.yaml"))
	return viper.WriteConfig()
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
