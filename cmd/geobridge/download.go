package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"geobridge/internal/engine"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <node>",
	Short: "Retrieve a node's output parts as scene assets",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output name used for fallback asset paths (default: node name)")
	rootCmd.AddCommand(downloadCmd)
}

func parseNode(s string) (engine.NodeID, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return engine.NoNode, fmt.Errorf("invalid node id %q", s)
	}
	return engine.NodeID(id), nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	node, err := parseNode(args[0])
	if err != nil {
		return err
	}

	a, ctx, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	output := downloadOutput
	if output == "" {
		info, err := a.session.Node(ctx, node)
		if err != nil {
			return err
		}
		output = info.Name
	}

	assets, err := a.bridge.Retrieve(ctx, node, output)
	if err != nil {
		return err
	}
	if err := a.bridge.Flush(ctx); err != nil {
		return err
	}

	for _, c := range assets {
		file, err := a.store.FilePath(c.Path)
		if err != nil {
			file = c.Path
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d items) -> %s\n", c.Path, len(c.Items), file)
	}
	return nil
}
