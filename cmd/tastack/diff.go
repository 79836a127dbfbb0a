package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/differ"
)

func newDiffCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
	)

	cmd := &cobra.Command{
		Use:   "diff <template1> [template2]",
		Short: "Compare CloudFormation templates",
		Long: `Diff compares two templates semantically. With one argument the saved
template is compared against a fresh synthesis.

Examples:
    tastack diff deployed.json
    tastack diff old.json new.yaml
    tastack diff deployed.json --ignore-order --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), opts, args, outputFormat, ignoreOrder)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore array element order")

	return cmd
}

func runDiff(w io.Writer, opts *globalOptions, args []string, format string, ignoreOrder bool) error {
	before, err := differ.LoadTemplate(args[0])
	if err != nil {
		return err
	}

	var after *tastack.Template
	if len(args) == 2 {
		after, err = differ.LoadTemplate(args[1])
		if err != nil {
			return err
		}
	} else {
		synth, err := synthesize(opts)
		if err != nil {
			return err
		}
		after = synth.template
	}

	result, err := differ.Compare(before, after, differ.Options{IgnoreOrder: ignoreOrder})
	if err != nil {
		return err
	}

	return outputDiffResult(w, result, format)
}

func outputDiffResult(w io.Writer, result *differ.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(struct {
			Diff    tastack.TemplateDiff `json:"diff"`
			Summary tastack.DiffSummary  `json:"summary"`
			Outputs []string             `json:"outputs,omitempty"`
		}{result.Diff, result.Summary, result.Outputs}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if result.Identical() {
			fmt.Fprintln(w, "Templates are identical.")
			return nil
		}
		for _, e := range result.Diff.Added {
			fmt.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			fmt.Fprintf(w, "~ %s (%s)\n", e.Resource, e.Type)
			for _, c := range e.Changes {
				fmt.Fprintf(w, "    %s\n", c)
			}
		}
		for _, o := range result.Outputs {
			fmt.Fprintf(w, "  output %s\n", o)
		}
		fmt.Fprintf(w, "\n%d added, %d removed, %d modified\n",
			result.Summary.Added, result.Summary.Removed, result.Summary.Modified)

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}
