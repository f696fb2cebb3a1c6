package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	slogcontext "github.com/veqryn/slog-context"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapi2types/internal/emitter"
	"github.com/mark3labs/oapi2types/internal/emitter/goemitter"
	"github.com/mark3labs/oapi2types/internal/emitter/jsonemitter"
	"github.com/mark3labs/oapi2types/internal/emitter/pyemitter"
	"github.com/mark3labs/oapi2types/internal/emitter/tsemitter"
	"github.com/mark3labs/oapi2types/internal/resolve"
	genspec "github.com/mark3labs/oapi2types/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input         string
	Lang          string
	Out           string
	PackageName   string
	ObjectSchemas []string
	// MapHint is "extension=value"; an empty value disables the hint.
	MapHint    string
	MetaHint   string
	SkipErrors bool
	NoValidate bool
	ConfigPath string
	DryRun     bool
	Force      bool
	Verbose    bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Lang:     "go",
		MapHint:  resolve.DefaultMapHintExtension + "=" + resolve.DefaultMapHintValue,
		MetaHint: resolve.DefaultMetaHintExtension,
	}
}

var generateRunner = runGenerate

var langAliases = map[string]string{
	"go":         "go",
	"golang":     "go",
	"typescript": "typescript",
	"ts":         "typescript",
	"npm":        "typescript",
	"python":     "python",
	"py":         "python",
	"json":       "json",
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate typed declarations from an OpenAPI/Swagger document",
		Long: "Resolve every schema under components.schemas (definitions for Swagger 2) and render " +
			"the resulting records, enums and aliases. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  oapi2types generate --input spec.yaml --lang go --out ./api
  oapi2types generate --input https://example.com/openapi.json --lang typescript --dry-run
  oapi2types --config oapi2types.yaml generate --force`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("lang", "", "Target language to emit (go|typescript|python|json); defaults to go")
	flags.String("out", "", "Output directory (derived from the spec title when omitted)")
	flags.String("package-name", "", "Package/module name used in generated sources")
	flags.StringSlice("object-schemas", nil, "Top-level schemas treated as objects when they have no type")
	flags.String("map-hint", "", "Extension marking an object as an open map, as ext=value (default x-type-label=map)")
	flags.String("meta-hint", "", "Extension marking a property-less object as an untyped blob (default x-meta)")
	flags.Bool("skip-errors", false, "Skip schemas that fail to resolve instead of aborting")
	flags.Bool("no-validate", false, "Skip OpenAPI validation of the input document")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

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

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		flag string
		dst  *string
	}{
		{"input", &cfg.Input},
		{"lang", &cfg.Lang},
		{"out", &cfg.Out},
		{"package-name", &cfg.PackageName},
		{"map-hint", &cfg.MapHint},
		{"meta-hint", &cfg.MetaHint},
	}
	for _, s := range strs {
		if !flags.Changed(s.flag) {
			continue
		}
		value, err := flags.GetString(s.flag)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
	}

	bools := []struct {
		flag string
		dst  *bool
	}{
		{"skip-errors", &cfg.SkipErrors},
		{"no-validate", &cfg.NoValidate},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"verbose", &cfg.Verbose},
	}
	for _, b := range bools {
		if !flags.Changed(b.flag) {
			continue
		}
		value, err := flags.GetBool(b.flag)
		if err != nil {
			return err
		}
		*b.dst = value
	}

	if flags.Changed("object-schemas") {
		value, err := flags.GetStringSlice("object-schemas")
		if err != nil {
			return err
		}
		cfg.ObjectSchemas = sanitizeNames(value)
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Lang = strings.ToLower(strings.TrimSpace(c.Lang))
	if canonical, ok := langAliases[c.Lang]; ok {
		c.Lang = canonical
	}
	c.Out = strings.TrimSpace(c.Out)
	c.PackageName = strings.TrimSpace(c.PackageName)
	c.ObjectSchemas = sanitizeNames(c.ObjectSchemas)
	c.MapHint = strings.TrimSpace(c.MapHint)
	c.MetaHint = strings.TrimSpace(c.MetaHint)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}

	switch c.Lang {
	case "":
		c.Lang = "go"
	case "go", "typescript", "python", "json":
	default:
		return newUsageErrorf("generate: unsupported --lang %q (allowed: go, typescript, python, json)", c.Lang)
	}

	if _, _, err := splitMapHint(c.MapHint); err != nil {
		return newUsageErrorf("generate: %v", err)
	}
	return nil
}

// splitMapHint parses "ext=value". An empty hint disables map detection.
func splitMapHint(hint string) (string, string, error) {
	if hint == "" {
		return "", "", nil
	}
	ext, value, ok := strings.Cut(hint, "=")
	ext, value = strings.TrimSpace(ext), strings.TrimSpace(value)
	if !ok || ext == "" || value == "" {
		return "", "", fmt.Errorf("invalid --map-hint %q (want extension=value)", hint)
	}
	return ext, value, nil
}

func (c *GenerateConfig) resolveOptions() []resolve.Option {
	ext, value, _ := splitMapHint(c.MapHint)
	return []resolve.Option{
		resolve.WithObjectSchemas(c.ObjectSchemas...),
		resolve.WithMapHint(ext, value),
		resolve.WithMetaHint(c.MetaHint),
		resolve.WithSkipErrors(c.SkipErrors),
	}
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := slogcontext.FromCtx(ctx)

	// 1) Load the spec (file or http/https URL) with validation and conversion
	doc, err := genspec.Load(ctx, cfg.Input, genspec.WithValidation(!cfg.NoValidate))
	if err != nil {
		// Map structured spec errors into friendly messages
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return newUsageError(msg)
		}
		return err
	}

	// 2) Resolve components.schemas into the declaration store
	res, err := resolve.ResolveAll(ctx, doc.Schemas(), cfg.resolveOptions()...)
	if err != nil {
		return fmt.Errorf("resolve schemas: %w", err)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "warning: skipped %s: %v\n", f.Name, f.Err)
	}
	log.Info("resolved schemas", "declarations", len(res.Store.SchemaNames()), "aliases", len(res.Store.AliasNames()))

	in, err := emitter.NewInput(doc.Title(), doc.Version(), res.Store)
	if err != nil {
		return fmt.Errorf("index declarations: %w", err)
	}

	// 3) Derive the output directory when omitted
	outDir := cfg.Out
	if outDir == "" {
		outDir = deriveOutDir(doc.Title())
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	// 4) Emit for the chosen language
	opts := emitter.Options{
		OutDir:      outDir,
		PackageName: cfg.PackageName,
		Force:       cfg.Force,
		DryRun:      cfg.DryRun,
		Verbose:     cfg.Verbose,
	}
	var out *emitter.Result
	switch cfg.Lang {
	case "go":
		out, err = goemitter.Emit(ctx, in, opts)
	case "typescript":
		out, err = tsemitter.Emit(ctx, in, opts)
	case "python":
		out, err = pyemitter.Emit(ctx, in, opts)
	case "json":
		out, err = jsonemitter.Emit(ctx, in, opts)
	default:
		return newUsageErrorf("generate: unsupported --lang %q (allowed: go, typescript, python, json)", cfg.Lang)
	}
	if err != nil {
		return wrapOutputError(err, absOut)
	}

	if cfg.DryRun {
		printPlan(absOut, out.Paths())
		return nil
	}
	fmt.Fprintf(os.Stdout, "Wrote %d files to %s (%d types)\n", len(out.Planned), absOut, len(out.Order))
	return nil
}

func printPlan(outDir string, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	if errors.Is(err, emitter.ErrNotEmpty) || errors.Is(err, os.ErrPermission) {
		return newUsageErrorf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, err)
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "read-only") || strings.Contains(lower, "not a directory") {
		return newUsageErrorf("output error for %s: %s\nHint: choose a different --out.", outDir, err)
	}
	return err
}

// deriveOutDir turns a document title into a directory name.
func deriveOutDir(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	parts := strings.Fields(repl.Replace(t))
	var b strings.Builder
	for _, r := range strings.Join(parts, "-") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if out := strings.Trim(b.String(), "-"); out != "" {
		return out + "-types"
	}
	return "types"
}

func sanitizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
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

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageErrorf("read config file %q: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageErrorf("parse config file %q: %v", path, err)
	}

	for key, value := range raw {
		var ferr error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, ferr = valueAsString(value)
		case "lang":
			cfg.Lang, ferr = valueAsString(value)
		case "out":
			cfg.Out, ferr = valueAsString(value)
		case "packagename":
			cfg.PackageName, ferr = valueAsString(value)
		case "objectschemas":
			var list []string
			list, ferr = valueAsStringSlice(value)
			cfg.ObjectSchemas = sanitizeNames(list)
		case "maphint":
			cfg.MapHint, ferr = valueAsString(value)
		case "metahint":
			cfg.MetaHint, ferr = valueAsString(value)
		case "skiperrors":
			cfg.SkipErrors, ferr = valueAsBool(value)
		case "novalidate":
			cfg.NoValidate, ferr = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, ferr = valueAsBool(value)
		case "force":
			cfg.Force, ferr = valueAsBool(value)
		case "verbose":
			cfg.Verbose, ferr = valueAsBool(value)
		default:
			return newUsageErrorf("config file %q: unknown field %q", path, key)
		}
		if ferr != nil {
			return newUsageErrorf("config field %q: %v", key, ferr)
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
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
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
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
