package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/tastack-go/internal/graph"
)

func newGraphCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat   string
		includeOutputs bool
		clusterByType  bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies.

The output can be rendered with Graphviz:
    tastack graph | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    tastack graph -f mermaid

Examples:
    tastack graph
    tastack graph -O              # include outputs
    tastack graph -c              # cluster by service
    tastack graph -f mermaid      # mermaid format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd.OutOrStdout(), opts, outputFormat, includeOutputs, clusterByType)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includeOutputs, "include-outputs", "O", false, "Include output nodes in the graph")
	cmd.Flags().BoolVarP(&clusterByType, "cluster", "c", false, "Cluster resources by AWS service type")

	return cmd
}

func runGraph(w io.Writer, opts *globalOptions, format string, includeOutputs, cluster bool) error {
	var graphFormat graph.Format
	switch format {
	case "dot":
		graphFormat = graph.FormatDOT
	case "mermaid":
		graphFormat = graph.FormatMermaid
	default:
		return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
	}

	synth, err := synthesize(opts)
	if err != nil {
		return err
	}

	gen := &graph.Generator{
		Format:         graphFormat,
		IncludeOutputs: includeOutputs,
		ClusterByType:  cluster,
	}

	return gen.Generate(synth.template, w)
}
