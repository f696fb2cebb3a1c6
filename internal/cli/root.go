package cli

import (
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"
)

// Execute runs the oapi2types CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oapi2types",
		Short: "Generate typed declarations from OpenAPI component schemas",
		Long: "oapi2types resolves the components.schemas section of an OpenAPI 3 or Swagger 2 document " +
			"into records, enums and aliases, and renders them as Go, TypeScript, Python or JSON.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := baseLogger(cmd)
			if err != nil {
				return newUsageErrorf("could not configure logging: %v", err)
			}
			cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))
			return nil
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagError)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")
	registerLoggingFlags(cmd)

	g := newGenerateCmd()
	g.SetFlagErrorFunc(flagError)
	cmd.AddCommand(g)

	i := newInitCmd()
	i.SetFlagErrorFunc(flagError)
	cmd.AddCommand(i)

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageErrorf("%v\n\n%s", err, c.UsageString())
}
