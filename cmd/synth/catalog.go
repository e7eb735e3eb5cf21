package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-synth/catalog"
	"github.com/cwbudde/algo-synth/node"
)

func newCatalogCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the registered node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCatalog(cmd.OutOrStdout(), catalog.NewRegistry(), verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also list parameters")
	return cmd
}

func printCatalog(w io.Writer, r *node.Registry, verbose bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tVOICES\tCH\tIN\tOUT")
	for _, t := range r.Types() {
		d, _ := r.Lookup(t)
		voices := "global"
		if d.Polyphony == node.PerVoice {
			voices = "per-voice"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			d.Type, d.Name, d.Category, voices, d.Channels, len(d.Inputs), len(d.Outputs))
		if !verbose {
			continue
		}
		for _, p := range d.Params {
			fmt.Fprintf(tw, "\t  %d %s\t%g..%g\tdefault %g\t%s\t\t\n", p.ID, p.Name, p.Min, p.Max, p.Default, p.Unit)
		}
	}
	return tw.Flush()
}
