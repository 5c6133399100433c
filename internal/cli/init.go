package cli

import (
    "context"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Stdout     io.Writer
}

const defaultConfigName = "rsgen.yaml"

var initRunner = runInit

func newInitCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "init",
        Short: "Scaffold a sample rsgen configuration file",
        Long:  "Scaffold a commented rsgen configuration file that documents the generate options.",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            out, err := cmd.Flags().GetString("out")
            if err != nil {
                return err
            }
            force, err := cmd.Flags().GetBool("force")
            if err != nil {
                return err
            }
            cfg := &InitConfig{
                OutputPath: out,
                Force:      force,
                Stdout:     cmd.OutOrStdout(),
            }
            return initRunner(cmd.Context(), cfg)
        },
    }

    cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
    cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

    return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
    if err := ctx.Err(); err != nil {
        return err
    }

    out := strings.TrimSpace(cfg.OutputPath)
    if out == "" {
        out = defaultConfigName
    }
    absPath, err := filepath.Abs(out)
    if err != nil {
        return fmt.Errorf("init: resolve output path: %w", err)
    }

    if st, err := os.Stat(absPath); err == nil && !cfg.Force {
        if st.Mode().IsRegular() {
            return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
        }
    }

    if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
    }

    content := strings.TrimSpace(sampleConfigYAML) + "\n"

    // Atomic write via temp + rename
    tmp := absPath + ".tmp"
    if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
    }
    if err := os.Rename(tmp, absPath); err != nil {
        _ = os.Remove(tmp)
        return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
    }
    w := cfg.Stdout
    if w == nil {
        w = os.Stdout
    }
    fmt.Fprintf(w, "Wrote sample config to %s\n", absPath)
    return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# rsgen configuration (YAML)
# Only the generate section is read. Command-line flags override config values.
generate:
  # Resource definition files (list or comma-separated).
  # resources: [./resources/persons.yaml, ./resources/addressbook.yaml]

  # Metadata of the generated artifact.
  # title: Address book
  # description: People and the places they live
  # summary: Address book API
  # version: "1.0"

  # Combined output file; omit or "-" for stdout.
  # output: ./openapi.yaml

  # One file per resource into outputDir (cli, rust-cli, streamlit).
  # asModules: false
  # outputDir: ./generated

  # Custom template replacing the built-in one.
  # template: ./templates/main.py.tmpl

  # cli and rust-cli: package of the CLI and of the generated API client.
  # pkg: addressbook.cli
  # clientPkg: addressbook.client

  # openapi
  # prefix: https://api.example.com
  # openapiVersion: 3.0.3
  # format: yaml
  # securitySchemes: [./security.yaml]

  # streamlit
  # backendUrl: https://localhost
  # colMappings:
  #   persons: [first_name, last_name]

  # Preview planned outputs without writing files.
  # dryRun: false

  # Write into a non-empty output directory.
  # force: false

  # Enable debug logging.
  # debug: false
`
