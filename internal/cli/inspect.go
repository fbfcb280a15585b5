package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vrm-expression-exporter/internal/extract"
	"vrm-expression-exporter/internal/framing"
	"vrm-expression-exporter/internal/scene"
)

func newInspectCmd(a *app) *cobra.Command {
	var targets bool

	cmd := &cobra.Command{
		Use:   "inspect <model.vrm>...",
		Short: "List expressions and morph target tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := a.loadModels(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range models {
				if err := inspect(out, m, targets); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&targets, "targets", true, "print each mesh's morph target table")
	return cmd
}

func inspect(w io.Writer, m *scene.Model, targets bool) error {
	res := extract.Extract(m)
	_, tier := framing.FaceBounds(m)

	fmt.Fprintf(w, "%s (%s)\n", m.DisplayName(), m.SourcePath)
	if res.OK() {
		fmt.Fprintf(w, "  expressions: %d preset, %d custom, %d bindings\n",
			res.Set.PresetCount(), res.Set.CustomCount(), res.Set.BindingCount())
	} else {
		fmt.Fprintf(w, "  expressions: none (%v)\n", res.Err)
	}
	fmt.Fprintf(w, "  framing: %s\n", tier)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if res.OK() && len(res.Set.Entries) > 0 {
		fmt.Fprintln(tw, "  EXPRESSION\tKIND\tBINDINGS\tMATERIAL")
		for _, e := range res.Set.Entries {
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\n", e.Name, e.Kind, len(e.MorphBindings),
				len(e.MaterialColorBindings)+len(e.MaterialUVBindings))
		}
	}
	if targets {
		inv := res.Inventory
		for _, path := range inv.MeshPaths() {
			names, _ := inv.Targets(path)
			fmt.Fprintf(tw, "  mesh %s\t%d targets\t\t\n", meshLabel(path), len(names))
			for i, n := range names {
				fmt.Fprintf(tw, "    %d\t%s\t\t\n", i, n)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	return nil
}

func meshLabel(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
