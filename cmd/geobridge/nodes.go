package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the nodes in the engine session",
	Args:  cobra.NoArgs,
	RunE:  runNodes,
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

func runNodes(cmd *cobra.Command, args []string) error {
	a, ctx, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	nodes, err := a.session.ListNodes(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPARENT\tOPERATOR\tNAME\tCOMMITS")
	for _, n := range nodes {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\n", n.ID, n.Parent, n.Operator, n.Name, n.Commits)
	}
	return w.Flush()
}
