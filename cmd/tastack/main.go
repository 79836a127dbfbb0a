// Command tastack synthesizes the teaching assistant's CloudFormation stack.
//
// Usage:
//
//	tastack build                 Generate CloudFormation template
//	tastack list                  List declared resources
//	tastack validate              Run cfn-lint and the security audit
//	tastack deploy                Hand the template to CloudFormation
//	tastack version               Show version
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lex00/tastack-go/internal/config"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	envFile        string
	requireEnvFile bool
	logLevel       string
	imageDir       string
	imageURI       string
	stackName      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "tastack",
		Short: "Synthesize the teaching assistant stack as CloudFormation",
		Long: `tastack declares the teaching assistant's infrastructure and synthesizes it
into a CloudFormation template:

    two DynamoDB tables, one container-image Lambda function with grants on
    the tables and the teaching-assistant-tavily bucket, and a public
    function URL.

PINECONE_API_KEY and API_KEY must be set in the environment or in the
dotenv file (default ../image/.env).

    tastack build -o template.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.logLevel)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "Dotenv file holding the secrets")
	flags.BoolVar(&opts.requireEnvFile, "require-env-file", false, "Fail when the dotenv file is missing")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.imageDir, "image-dir", "", "Container build context (default ../image)")
	flags.StringVar(&opts.imageURI, "image-uri", "", "Use this image URI instead of the image asset")
	flags.StringVar(&opts.stackName, "stack-name", "", "Stack name (default TaCdkInfraStack)")

	rootCmd.AddCommand(
		newBuildCmd(opts),
		newListCmd(opts),
		newGraphCmd(opts),
		newValidateCmd(opts),
		newDiffCmd(opts),
		newWatchCmd(opts),
		newDeployCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// setupLogging points the global logger at stderr.
func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return fmt.Errorf("unknown log level: %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tastack %s\n", getVersion())
		},
	}
}
