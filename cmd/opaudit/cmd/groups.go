package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opaudit/opaudit/pkg/telemetry"
)

var groupsMembers bool

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the group universe the audit would cover",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := newLogger()
		client := newClient(logger, telemetry.NewNoopMetrics())

		if err := client.Preflight(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		groups, err := client.ListGroups(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing groups: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		if groupsMembers {
			fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
			for _, group := range groups {
				members := client.ListGroupMembers(ctx, group.ID)
				fmt.Fprintf(w, "%s\t%s\t%d\n", group.ID, group.Name, len(members))
			}
		} else {
			fmt.Fprintln(w, "ID\tNAME")
			for _, group := range groups {
				fmt.Fprintf(w, "%s\t%s\n", group.ID, group.Name)
			}
		}
		w.Flush()
	},
}

func init() {
	groupsCmd.Flags().BoolVar(&groupsMembers, "members", false, "Include member counts (one extra authority call per group)")
	rootCmd.AddCommand(groupsCmd)
}
