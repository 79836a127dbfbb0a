package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lex00/tastack-go/internal/deploy"
	"github.com/lex00/tastack-go/internal/stack"
)

type deployOptions struct {
	region         string
	changeSetName  string
	skipImageCheck bool
	timeout        time.Duration
}

func newDeployCmd(opts *globalOptions) *cobra.Command {
	var dopts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the stack through a CloudFormation change set",
		Long: `Deploy synthesizes the template and hands it to CloudFormation as a change
set. The stack is created when it does not exist and updated otherwise; an
empty change set is reported and discarded. On success the function URL is
printed.

The image asset must already be published to the bootstrap asset repository
(cdk-<qualifier>-container-assets-<account>-<region>) unless --image-uri is set.

Examples:
    tastack deploy
    tastack deploy --region us-west-2
    tastack deploy --image-uri 123456789012.dkr.ecr.us-east-1.amazonaws.com/ta:v3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deploy.NewFromConfig(commandContext(cmd), dopts.region)
			if err != nil {
				return err
			}
			return runDeploy(commandContext(cmd), cmd.OutOrStdout(), d, opts, dopts)
		},
	}

	cmd.Flags().StringVar(&dopts.region, "region", "", "AWS region (default from the AWS config chain)")
	cmd.Flags().StringVar(&dopts.changeSetName, "change-set-name", "", "Change set name (default tastack-<unix time>)")
	cmd.Flags().BoolVar(&dopts.skipImageCheck, "skip-image-check", false, "Do not verify the image asset is published")
	cmd.Flags().DurationVar(&dopts.timeout, "timeout", deploy.DefaultMaxWait, "Maximum wait for each CloudFormation step")

	return cmd
}

func runDeploy(ctx context.Context, w io.Writer, d *deploy.Deployer, opts *globalOptions, dopts deployOptions) error {
	synth, err := synthesize(opts)
	if err != nil {
		return err
	}

	if image, ok := synth.imageAsset(); ok && !dopts.skipImageCheck {
		if err := d.CheckImagePublished(ctx, image, synth.config.Qualifier); err != nil {
			return err
		}
	}

	d.MaxWait = dopts.timeout
	log.Info().Str("stack", synth.stack.Name()).Msg(synth.stack.Summary())

	result, err := d.Deploy(ctx, deploy.Request{
		StackName:     synth.stack.Name(),
		Template:      synth.template,
		ChangeSetName: dopts.changeSetName,
		Description:   "tastack " + getVersion(),
	})
	if err != nil {
		return err
	}

	if result.NoChanges {
		fmt.Fprintf(w, "%s: no changes\n", result.StackName)
	} else {
		fmt.Fprintf(w, "%s: %s complete\n", result.StackName, result.ChangeSetType)
	}
	if url := result.Output(stack.FunctionURLOutput); url != "" {
		fmt.Fprintf(w, "%s = %s\n", stack.FunctionURLOutput, url)
	}
	return nil
}

// commandContext returns the command's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
