package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opaudit/opaudit/pkg/telemetry"
)

var vaultsAll bool

var vaultsCmd = &cobra.Command{
	Use:   "vaults",
	Short: "List the vault universe the audit would cover",
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger()
		client := newClient(logger, telemetry.NewNoopMetrics())
		client.AllVaults = vaultsAll

		if err := client.Preflight(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		vaults, err := client.ListVaults(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing vaults: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		for _, vault := range vaults {
			fmt.Fprintf(w, "%s\t%s\n", vault.ID, vault.Name)
		}
		w.Flush()
	},
}

func init() {
	vaultsCmd.Flags().BoolVar(&vaultsAll, "all", false, "Include vaults the caller cannot administer")
	rootCmd.AddCommand(vaultsCmd)
}
