package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/emitter/asyncapiemitter"
	"github.com/mark3labs/rsgen/internal/emitter/openapiemitter"
	"github.com/mark3labs/rsgen/internal/emitter/pyemitter"
	"github.com/mark3labs/rsgen/internal/emitter/rustemitter"
	"github.com/mark3labs/rsgen/internal/emitter/uiemitter"
	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

// Generation targets, one sub-verb each.
const (
	TargetOpenAPI   = "openapi"
	TargetAsyncAPI  = "asyncapi"
	TargetCLI       = "cli"
	TargetRustCLI   = "rust-cli"
	TargetStreamlit = "streamlit"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Target      string
	Resources   []string
	Title       string
	Description string
	Summary     string
	Version     string
	ConfigPath  string

	Output    string
	OutDir    string
	AsModules bool
	Template  string
	DryRun    bool
	Force     bool
	Debug     bool

	// cli and rust-cli
	Pkg       string
	ClientPkg string

	// openapi
	Prefix          string
	OpenAPIVersion  string
	Format          string
	SecuritySchemes []string

	// streamlit
	BackendURL  string
	ColMappings map[string][]string

	Stdout io.Writer
	Logger *slog.Logger
}

func defaultGenerateConfig(target string) GenerateConfig {
	cfg := GenerateConfig{Target: target}
	switch target {
	case TargetOpenAPI:
		cfg.OpenAPIVersion = openapiemitter.DefaultVersion
		cfg.Format = openapiemitter.FormatYAML
	case TargetStreamlit:
		cfg.BackendURL = uiemitter.DefaultBackendURL
	}
	return cfg
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an artifact from resource definitions",
		Long: "Generate an API document, a command-line client or a UI from one or more resource definitions. " +
			"Options can be provided via flags, the generate section of a config file, or defaults.",
		Example: strings.TrimSpace(`  rsgen generate -r persons.yaml -t "Address book" -d "People and places" -v 1.0 openapi -O openapi.yaml
  rsgen generate -r persons.yaml -t AB -d AB -v 1.0 cli --pkg ab.cli --client-pkg ab.client --as-modules -o ./cli
  rsgen --config rsgen.yaml generate streamlit --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsage(cmd, newUsageError("generate: a target is required (openapi, asyncapi, cli, rust-cli, streamlit)"))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceP("resources", "r", nil, "Resource definition files (repeat or comma-separate)")
	flags.StringP("title", "t", "", "Title of the generated artifact")
	flags.StringP("description", "d", "", "Description of the generated artifact")
	flags.StringP("summary", "s", "", "Short summary; defaults to the description")
	flags.StringP("version", "v", "", "Version of the generated artifact")

	for _, sub := range []*cobra.Command{
		newTargetCmd(TargetOpenAPI, "Generate an OpenAPI 3 document", func(f *pflag.FlagSet) {
			f.String("prefix", "", "Server URL prefix")
			f.String("openapi-version", openapiemitter.DefaultVersion, "OpenAPI version to declare")
			f.String("format", openapiemitter.FormatYAML, "Output format (yaml|json)")
			f.StringSlice("security-scheme", nil, "Files with extra security schemes to inject")
		}),
		newTargetCmd(TargetAsyncAPI, "Generate an AsyncAPI 2 document of websocket channels", nil),
		newTargetCmd(TargetCLI, "Generate a Python Click CLI", func(f *pflag.FlagSet) {
			addModuleFlags(f)
			f.String("pkg", "", "Package the CLI lives in (required)")
			f.String("client-pkg", "", "Package of the generated API client (required)")
		}),
		newTargetCmd(TargetRustCLI, "Generate a Rust clap CLI", func(f *pflag.FlagSet) {
			addModuleFlags(f)
			f.String("pkg", "", "Crate name of the CLI (required)")
			f.String("client-pkg", "", "Crate of the generated API client (required)")
		}),
		newTargetCmd(TargetStreamlit, "Generate a Streamlit data-grid UI", func(f *pflag.FlagSet) {
			addModuleFlags(f)
			f.String("backend-url", uiemitter.DefaultBackendURL, "Base URL of the resource API")
			f.StringP("col-mappings", "C", "", `Column order per collection as a JSON object, e.g. '{"persons":["name","age"]}'`)
		}),
	} {
		cmd.AddCommand(sub)
	}

	return cmd
}

func newTargetCmd(target, short string, extra func(*pflag.FlagSet)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   target,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd, target)
			if err != nil {
				return withUsage(cmd, err)
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringP("output", "O", "", `Output file; "-" or empty writes to stdout`)
	f.Bool("dry-run", false, "Preview planned outputs without writing files")
	f.Bool("force", false, "Write into a non-empty output directory")
	if extra != nil {
		extra(f)
	}
	return cmd
}

func addModuleFlags(f *pflag.FlagSet) {
	f.StringP("output-dir", "o", "", "Output directory for --as-modules")
	f.Bool("as-modules", false, "Write one file per resource instead of a combined file")
	f.StringP("template", "T", "", "Custom template file")
}

func resolveGenerateConfig(cmd *cobra.Command, target string) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig(target)

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Stdout = cmd.OutOrStdout()
	cfg.Logger = newLogger(cmd.ErrOrStderr(), cfg.Debug)
	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"title":           &cfg.Title,
		"description":     &cfg.Description,
		"summary":         &cfg.Summary,
		"version":         &cfg.Version,
		"output":          &cfg.Output,
		"output-dir":      &cfg.OutDir,
		"template":        &cfg.Template,
		"pkg":             &cfg.Pkg,
		"client-pkg":      &cfg.ClientPkg,
		"prefix":          &cfg.Prefix,
		"openapi-version": &cfg.OpenAPIVersion,
		"format":          &cfg.Format,
		"backend-url":     &cfg.BackendURL,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	bools := map[string]*bool{
		"as-modules": &cfg.AsModules,
		"dry-run":    &cfg.DryRun,
		"force":      &cfg.Force,
		"debug":      &cfg.Debug,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("resources") {
		value, err := flags.GetStringSlice("resources")
		if err != nil {
			return err
		}
		cfg.Resources = value
	}
	if flags.Changed("security-scheme") {
		value, err := flags.GetStringSlice("security-scheme")
		if err != nil {
			return err
		}
		cfg.SecuritySchemes = value
	}
	if flags.Changed("col-mappings") {
		value, err := flags.GetString("col-mappings")
		if err != nil {
			return err
		}
		mappings, err := parseColMappings(value)
		if err != nil {
			return newUsageError(fmt.Sprintf("generate: --col-mappings: %v", err))
		}
		cfg.ColMappings = mappings
	}

	return nil
}

// parseColMappings decodes a JSON object of collection name to column list.
func parseColMappings(raw string) (map[string][]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out map[string][]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("expected a JSON object of string lists: %w", err)
	}
	return out, nil
}

func (c *GenerateConfig) normalize() {
	c.Resources = cleanList(c.Resources)
	c.SecuritySchemes = cleanList(c.SecuritySchemes)
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Summary = strings.TrimSpace(c.Summary)
	c.Version = strings.TrimSpace(c.Version)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	for name, cols := range c.ColMappings {
		c.ColMappings[name] = cleanList(cols)
	}
}

func (c *GenerateConfig) validate() error {
	if len(c.Resources) == 0 {
		return newUsageError("generate: --resources is required (set via flag or config file)")
	}
	for _, req := range []struct{ flag, value string }{
		{"--title", c.Title},
		{"--description", c.Description},
		{"--version", c.Version},
	} {
		if req.value == "" {
			return newUsageError(fmt.Sprintf("generate: %s is required (set via flag or config file)", req.flag))
		}
	}

	switch c.Target {
	case TargetOpenAPI:
		switch c.Format {
		case "", openapiemitter.FormatYAML, openapiemitter.FormatJSON:
		default:
			return newUsageError(fmt.Sprintf("generate: unsupported --format %q (allowed: yaml, json)", c.Format))
		}
	case TargetCLI, TargetRustCLI:
		if c.Pkg == "" || c.ClientPkg == "" {
			return newUsageError(fmt.Sprintf("generate %s: --pkg and --client-pkg are required", c.Target))
		}
	case TargetAsyncAPI, TargetStreamlit:
	default:
		return newUsageError(fmt.Sprintf("generate: unknown target %q", c.Target))
	}

	if c.AsModules && c.OutDir == "" {
		return newUsageError(fmt.Sprintf("generate %s: --as-modules requires --output-dir", c.Target))
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	defs, err := resource.LoadAll(ctx, cfg.Resources, resource.WithLogger(log))
	if err != nil {
		return newResourceFailure(err)
	}
	log.Debug("loaded resources", slog.Int("count", len(defs)), slog.String("target", cfg.Target))

	meta := emitter.Metadata{Title: cfg.Title, Description: cfg.Description, Summary: cfg.Summary, Version: cfg.Version}
	base := emitter.Options{
		Output:    cfg.Output,
		OutDir:    cfg.OutDir,
		AsModules: cfg.AsModules,
		Template:  cfg.Template,
		Force:     cfg.Force,
		DryRun:    cfg.DryRun,
		Stdout:    stdout,
		Logger:    log,
	}

	// partial holds per-resource failures that still let the other
	// resources be written.
	var partial error
	var res *emitter.Result
	if cfg.Target == TargetAsyncAPI {
		res, err = asyncapiemitter.Emit(ctx, defs, meta, asyncapiemitter.Options{Options: base})
	} else {
		s, berr := surface.BuildOperations(ctx, defs, surface.WithLogger(log))
		if berr != nil {
			if !base.Partial(berr) {
				return newResourceFailure(berr)
			}
			logPartial(log, berr)
			partial = berr
		}
		res, err = emit(ctx, cfg, s, meta, base)
	}
	if err != nil {
		if res == nil || !base.Partial(err) {
			var batch *surface.BatchError
			if errors.As(err, &batch) {
				return newResourceFailure(err)
			}
			return wrapOutputError(err, cfg)
		}
		logPartial(log, err)
		partial = errors.Join(partial, err)
	}

	if cfg.DryRun {
		printPlan(stdout, res)
	}
	if partial != nil {
		return newResourceFailure(partial)
	}
	return nil
}

func emit(ctx context.Context, cfg *GenerateConfig, s *surface.Surface, meta emitter.Metadata, base emitter.Options) (*emitter.Result, error) {
	switch cfg.Target {
	case TargetOpenAPI:
		return openapiemitter.Emit(ctx, s, meta, openapiemitter.Options{
			Options:         base,
			Prefix:          cfg.Prefix,
			OpenAPIVersion:  cfg.OpenAPIVersion,
			Format:          cfg.Format,
			SecuritySchemes: cfg.SecuritySchemes,
		})
	case TargetCLI:
		return pyemitter.Emit(ctx, s, meta, pyemitter.Options{Options: base, Pkg: cfg.Pkg, ClientPkg: cfg.ClientPkg})
	case TargetRustCLI:
		return rustemitter.Emit(ctx, s, meta, rustemitter.Options{Options: base, Pkg: cfg.Pkg, ClientPkg: cfg.ClientPkg})
	case TargetStreamlit:
		return uiemitter.Emit(ctx, s, meta, uiemitter.Options{Options: base, BackendURL: cfg.BackendURL, ColMappings: cfg.ColMappings})
	}
	return nil, newUsageError(fmt.Sprintf("generate: unknown target %q", cfg.Target))
}

// logPartial notes the resources left out of as-modules output. The
// failures themselves were logged where they happened.
func logPartial(log *slog.Logger, err error) {
	var batch *surface.BatchError
	if errors.As(err, &batch) {
		log.Warn("writing remaining resources", slog.Any("skipped", batch.FailedKinds()))
	}
}

func printPlan(w io.Writer, res *emitter.Result) {
	if res.Dir == "" {
		fmt.Fprintln(w, "Planned write to stdout")
		return
	}
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", res.Dir, len(res.Planned))
	for _, p := range res.Planned {
		fmt.Fprintf(w, "- %s\n", p.RelPath)
	}
}

func wrapOutputError(err error, cfg *GenerateConfig) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		target := cfg.OutDir
		if target == "" {
			target = cfg.Output
		}
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --output-dir or use --force when appropriate.", target, msg))
	}
	return err
}

func cleanList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// applyGenerateConfigFromFile reads the generate section of a YAML config.
func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}
	root := documentRoot(&doc)
	if root == nil {
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return newUsageError(fmt.Sprintf("config file %q: expected a mapping, got %s", path, nodeKind(root)))
	}

	var section *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if normalizeKey(key) != "generate" {
			return newUsageError(fmt.Sprintf("config file %q: unknown section %q", path, key))
		}
		if isNull(value) {
			continue
		}
		if value.Kind != yaml.MappingNode {
			return newUsageError(fmt.Sprintf("config file %q: section %q must be a mapping", path, key))
		}
		section = value
	}
	if section == nil {
		return nil
	}

	for i := 0; i+1 < len(section.Content); i += 2 {
		key, value := section.Content[i].Value, section.Content[i+1]
		if err := applyConfigField(cfg, normalizeKey(key), value); err != nil {
			if errors.Is(err, errUnknownField) {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

var errUnknownField = errors.New("unknown field")

func applyConfigField(cfg *GenerateConfig, key string, value *yaml.Node) error {
	strs := map[string]*string{
		"title":          &cfg.Title,
		"description":    &cfg.Description,
		"summary":        &cfg.Summary,
		"version":        &cfg.Version,
		"output":         &cfg.Output,
		"outputdir":      &cfg.OutDir,
		"template":       &cfg.Template,
		"pkg":            &cfg.Pkg,
		"clientpkg":      &cfg.ClientPkg,
		"prefix":         &cfg.Prefix,
		"openapiversion": &cfg.OpenAPIVersion,
		"format":         &cfg.Format,
		"backendurl":     &cfg.BackendURL,
	}
	if dst, ok := strs[key]; ok {
		str, err := valueAsString(value)
		if err != nil {
			return err
		}
		*dst = str
		return nil
	}

	bools := map[string]*bool{
		"asmodules": &cfg.AsModules,
		"dryrun":    &cfg.DryRun,
		"force":     &cfg.Force,
		"debug":     &cfg.Debug,
	}
	if dst, ok := bools[key]; ok {
		val, err := valueAsBool(value)
		if err != nil {
			return err
		}
		*dst = val
		return nil
	}

	switch key {
	case "resources":
		list, err := valueAsStringSlice(value)
		if err != nil {
			return err
		}
		cfg.Resources = list
	case "securityschemes":
		list, err := valueAsStringSlice(value)
		if err != nil {
			return err
		}
		cfg.SecuritySchemes = list
	case "colmappings":
		mappings, err := valueAsColMappings(value)
		if err != nil {
			return err
		}
		cfg.ColMappings = mappings
	default:
		return errUnknownField
	}
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || isNull(doc.Content[0]) {
		return nil
	}
	return doc.Content[0]
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.AliasNode:
		return "alias"
	}
	return "scalar"
}

// valueAsString keeps scalars as written, so an unquoted 1.0 stays "1.0".
func valueAsString(n *yaml.Node) (string, error) {
	switch {
	case isNull(n):
		return "", nil
	case n.Kind == yaml.ScalarNode:
		return strings.TrimSpace(n.Value), nil
	default:
		return "", fmt.Errorf("expected string, got %s", nodeKind(n))
	}
}

func valueAsStringSlice(n *yaml.Node) ([]string, error) {
	switch {
	case isNull(n):
		return nil, nil
	case n.Kind == yaml.ScalarNode:
		if strings.TrimSpace(n.Value) == "" {
			return nil, nil
		}
		return splitAndTrim(n.Value), nil
	case n.Kind == yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for idx, elem := range n.Content {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %s", nodeKind(n))
	}
}

func valueAsColMappings(n *yaml.Node) (map[string][]string, error) {
	switch {
	case isNull(n):
		return nil, nil
	case n.Kind == yaml.ScalarNode:
		return parseColMappings(n.Value)
	case n.Kind == yaml.MappingNode:
		out := make(map[string][]string, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			name := n.Content[i].Value
			list, err := valueAsStringSlice(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("collection %s: %w", name, err)
			}
			out[name] = list
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping, got %s", nodeKind(n))
	}
}

func valueAsBool(n *yaml.Node) (bool, error) {
	switch {
	case isNull(n):
		return false, nil
	case n.Kind != yaml.ScalarNode:
		return false, fmt.Errorf("expected boolean, got %s", nodeKind(n))
	}
	switch strings.ToLower(strings.TrimSpace(n.Value)) {
	case "true", "t", "1", "yes", "y":
		return true, nil
	case "false", "f", "0", "no", "n", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", n.Value)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
