package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerwo/escrow-go/internal/sim"
	"github.com/nerwo/escrow-go/util"
)

func newRunCmd(opts *options) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Deploy escrow and arbitrator contracts and replay the scenarios",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			reports, err := sim.RunFiles(cmd.Context(), cfg, log, args, parallel)
			for _, fr := range reports {
				if len(reports) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", fr.Path)
				}
				if fr.Report != nil {
					printReport(cmd.OutOrStdout(), fr.Report)
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 4, "number of scenarios replayed concurrently")
	return cmd
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func printReport(w io.Writer, rep *sim.Report) {
	fmt.Fprintf(w, "escrow %s\n", rep.Escrow.Hex())
	for _, s := range rep.Steps {
		status := "ok"
		if s.Err != nil {
			status = "failed: " + s.Err.Error()
		}
		fmt.Fprintf(w, "%2d. %-9s %s\n", s.Index, s.Action, status)
		for _, desc := range util.TransformSlice(s.Events, sim.DescribeEvent) {
			fmt.Fprintf(w, "      %s\n", desc)
		}
	}
	fmt.Fprintf(w, "%d steps, %d calls failed\n", len(rep.Steps), len(rep.Failed()))
	if rep.Balances == nil {
		return
	}
	fmt.Fprintln(w, "balances:")
	for _, name := range slices.Sorted(maps.Keys(rep.Balances)) {
		fmt.Fprintf(w, "  %-10s %s\n", name, rep.Balances[name].Dec())
	}
}
