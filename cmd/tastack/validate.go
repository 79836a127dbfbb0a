package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/lint"
	"github.com/lex00/tastack-go/internal/validation"
)

type validateOptions struct {
	format      string
	skipCfnLint bool
	disable     []string
}

// newValidateCmd creates the "validate" subcommand for checking the synthesized template.
func newValidateCmd(opts *globalOptions) *cobra.Command {
	var vopts validateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the synthesized template",
		Long: `Validate synthesizes the stack and checks the template.

Checks performed:
  - cfn-lint: CloudFormation schema and best-practice rules
  - Security audit: broad managed policies, unauthenticated function URLs,
    plaintext secrets in environment variables, wildcard actions

Audit warnings do not fail validation; errors do.

Examples:
    tastack validate
    tastack validate --format json
    tastack validate --disable TAS001,TAS002`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), opts, vopts)
		},
	}

	cmd.Flags().StringVarP(&vopts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&vopts.skipCfnLint, "skip-cfn-lint", false, "Run only the security audit")
	cmd.Flags().StringSliceVar(&vopts.disable, "disable", nil, "Audit rules to skip")

	return cmd
}

func runValidate(w io.Writer, opts *globalOptions, vopts validateOptions) error {
	synth, err := synthesize(opts)
	if err != nil {
		return err
	}

	auditOpts := lint.Options{DisabledRules: vopts.disable}

	var result *validation.ValidationResult
	if vopts.skipCfnLint {
		result = &validation.ValidationResult{AuditResult: lint.Audit(synth.template, auditOpts)}
	} else {
		result, err = validation.Validate(synth.template, auditOpts)
		if err != nil {
			return err
		}
	}

	validateResult := tastack.ValidateResult{
		Success:   result.Passed(),
		Resources: len(synth.template.Resources),
	}
	if cfn := result.CfnLintResult; cfn != nil {
		validateResult.Errors = append(validateResult.Errors, cfn.Errors...)
		validateResult.Warnings = append(validateResult.Warnings, cfn.Warnings...)
	}
	for _, issue := range result.AuditResult.Errors() {
		validateResult.Errors = append(validateResult.Errors, formatIssue(issue))
	}
	for _, issue := range result.AuditResult.Warnings() {
		validateResult.Warnings = append(validateResult.Warnings, formatIssue(issue))
	}

	return outputValidateResult(w, validateResult, vopts.format)
}

func formatIssue(issue lint.Issue) string {
	return fmt.Sprintf("%s: %s: %s", issue.Rule, issue.Resource, issue.Message)
}

func outputValidateResult(w io.Writer, result tastack.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if result.Success {
			fmt.Fprintf(w, "Validation passed: %d resources OK\n", result.Resources)
		} else {
			fmt.Fprintln(w, "Validation FAILED:")
		}
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return fmt.Errorf("validation failed")
	}

	return nil
}
