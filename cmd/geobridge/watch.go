package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/spf13/cobra"

	"geobridge/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <scene>",
	Short: "Upload a scene file and re-upload it whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&uploadInput, "input", "i", "", "input name (default: scene file name)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, ctx, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scene, input := args[0], inputName(args[0])

	reupload := func(ctx context.Context, path string) error {
		state, err := upload(ctx, a, scene, input)
		if err != nil {
			return err
		}
		logging.GetFromContext(ctx).Info("uploaded", "input", input, "path", path, "slots", len(state.Slots))
		return nil
	}

	if err := reupload(ctx, scene); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (input %q), press Ctrl+C to stop\n", scene, input)

	w := watcher.New(reupload, scene).WithDebounce(a.cfg.DebounceInterval())
	if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
