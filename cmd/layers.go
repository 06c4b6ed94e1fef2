package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/layers"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Manage provider layers and the layer cache",
}

// -- layers fetch --

var layersFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all layers into the layer cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg, err := newRegistry("")
		if err != nil {
			return err
		}
		state, err := newLoader(reg, st).Load(ctx, layers.LoadOpts{Refresh: true})
		if err != nil {
			return eris.Wrap(err, "layers fetch")
		}

		formatLayerCounts(os.Stdout, reg.Names(), state)
		if len(state.Failed) > 0 {
			return eris.Errorf("layers fetch: %d of %d layers failed", len(state.Failed), reg.Len())
		}
		return nil
	},
}

// -- layers prune --

var layersPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired layer cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteExpiredLayers(ctx)
		if err != nil {
			return eris.Wrap(err, "layers prune")
		}
		zap.L().Info("expired layers deleted", zap.Int("count", n))
		return nil
	},
}

func init() {
	layersCmd.AddCommand(layersFetchCmd)
	layersCmd.AddCommand(layersPruneCmd)
	rootCmd.AddCommand(layersCmd)
}

// formatLayerCounts writes one row per layer in registration order.
func formatLayerCounts(out io.Writer, names []string, state *layers.State) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LAYER\tFEATURES\tSTATUS")
	for _, name := range names {
		status := "ok"
		if slices.Contains(state.Failed, name) {
			status = "failed"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", name, state.Counts[name], status)
	}
	_, _ = fmt.Fprintf(w, "merged schools\t%d\t\n", len(state.Schools))
	_ = w.Flush()
}
