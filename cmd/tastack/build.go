package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/template"
)

func newBuildCmd(opts *globalOptions) *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the CloudFormation template",
		Long: `Build resolves the secrets, fingerprints the image directory and
synthesizes the stack into a CloudFormation template.

Examples:
    tastack build
    tastack build -o template.json
    tastack build --format yaml
    tastack build --image-uri 123456789012.dkr.ecr.us-east-1.amazonaws.com/ta:latest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, outputFormat, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runBuild(stdout, stderr io.Writer, opts *globalOptions, format, outputFile string) error {
	synth, err := synthesize(opts)
	if err != nil {
		return outputResult(stdout, stderr, tastack.BuildResult{
			Success: false,
			Errors:  []string{err.Error()},
		}, format, outputFile)
	}

	order, err := synth.stack.Resources()
	if err != nil {
		return err
	}
	names := make([]string, len(order))
	for i, r := range order {
		names[i] = r.Name
	}

	return outputResult(stdout, stderr, tastack.BuildResult{
		Success:   true,
		Template:  *synth.template,
		Resources: names,
	}, format, outputFile)
}

func outputResult(stdout, stderr io.Writer, result tastack.BuildResult, format, outputFile string) error {
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintln(stderr, e)
		}
		return fmt.Errorf("build failed")
	}

	data, err := marshalTemplate(&result.Template, format)
	if err != nil {
		return err
	}

	if outputFile == "" {
		fmt.Fprintln(stdout, string(data))
		return nil
	}

	return os.WriteFile(outputFile, data, 0644)
}

func marshalTemplate(t *tastack.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(t)
	case "yaml":
		return template.ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}
