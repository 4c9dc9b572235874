package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"geobridge/internal/content"
	"geobridge/internal/engine"
)

var (
	uploadInput string
	uploadAsset bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <scene>",
	Short: "Upload a scene file into a named engine input",
	Long: `Upload a scene file into a named engine input.

With --asset the argument is an asset path inside the content directory
and the input tracks that asset; otherwise the file is read directly and
uploaded as a single source.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <input>",
	Short: "Delete every engine node a named input owns",
	Args:  cobra.ExactArgs(1),
	RunE:  runDestroy,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadInput, "input", "i", "", "input name (default: scene file name)")
	uploadCmd.Flags().BoolVar(&uploadAsset, "asset", false, "treat the argument as a content asset path")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(destroyCmd)
}

func inputName(scene string) string {
	if uploadInput != "" {
		return uploadInput
	}
	base := filepath.Base(scene)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, ctx, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := upload(ctx, a, args[0], inputName(args[0]))
	if err != nil {
		return err
	}
	printState(cmd, inputName(args[0]), state)
	return nil
}

func upload(ctx context.Context, a *app, scene, input string) (engine.InputState, error) {
	if uploadAsset {
		return a.bridge.UploadAsset(ctx, input, a.store, scene)
	}

	c, err := content.LoadFile(scene)
	if err != nil {
		return engine.InputState{}, err
	}
	return a.bridge.UploadCollection(ctx, input, c)
}

func printState(cmd *cobra.Command, input string, state engine.InputState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "input %q: geo node %d, merge node %d\n", input, state.GeoNode, state.MergeNode)
	for i, slot := range state.Slots {
		if slot.Valid() {
			fmt.Fprintf(out, "  slot %d -> node %d\n", i, slot)
		}
	}
}

func runDestroy(cmd *cobra.Command, args []string) error {
	a, ctx, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.bridge.DestroyInput(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "destroyed input %q\n", args[0])
	return nil
}
