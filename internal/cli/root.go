package cli

import (
    "fmt"
    "io"
    "log/slog"

    "github.com/spf13/cobra"
)

// Execute runs the rsgen CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "rsgen",
        Short: "Compile resource definitions into API documents, CLIs and UIs",
        Long: "rsgen reads declarative resource definitions and generates an OpenAPI document, " +
            "an AsyncAPI document, Python and Rust command-line clients, or a Streamlit data-grid UI.",
        SilenceErrors: true,
        SilenceUsage:  true,
        RunE: func(cmd *cobra.Command, args []string) error {
            return cmd.Help()
        },
    }

    cmd.SetFlagErrorFunc(flagError)

    cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML)")
    cmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")

    cmd.AddCommand(newGenerateCmd())
    cmd.AddCommand(newInitCmd())

    return cmd
}

// flagError turns cobra flag errors (like unknown flags) into usage errors
// that also show the command's help text. Subcommands inherit it.
func flagError(c *cobra.Command, err error) error {
    return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}

// newLogger writes text records to w, at debug level when requested.
func newLogger(w io.Writer, debug bool) *slog.Logger {
    level := slog.LevelInfo
    if debug {
        level = slog.LevelDebug
    }
    return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
