package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	slogcontext "github.com/veqryn/slog-context"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapi2types/internal/tree"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/components/schemas/Pet"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs permits file based external refs for documents fetched
	// over http. Local inputs always allow them.
	AllowFileRefs bool
	// Validate runs kin-openapi validation on OpenAPI 3 input. Swagger 2
	// input is always parsed by kin-openapi for the conversion.
	Validate bool
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Validate:    true,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithValidation(validate bool) Option    { return func(s *Settings) { s.Validate = validate } }

// Document is a loaded API description. Root is always an OpenAPI 3 view.
// For Swagger 2 input it holds info and the definitions, moved under
// components.schemas; OpenAPI holds the full converted document.
type Document struct {
	Location      string
	SourceVersion int // 2 or 3
	Root          tree.Node
	// OpenAPI is nil when validation was disabled for OpenAPI 3 input.
	OpenAPI *openapi3.T
}

// Schemas returns the components.schemas mapping, or nil.
func (d *Document) Schemas() tree.Node {
	n, ok := tree.Lookup(d.Root, "components", "schemas")
	if !ok || !n.IsMapping() {
		return nil
	}
	return n
}

func (d *Document) Title() string {
	info, _ := d.Root.Get("info")
	return tree.StringAt(info, "title")
}

func (d *Document) Version() string {
	info, _ := d.Root.Get("info")
	return tree.StringAt(info, "version")
}

// Load reads an OpenAPI 3 or Swagger 2 document from a filesystem path or an
// http/https URL. file:// URLs are blocked.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	raw, location, remote, err := read(ctx, input, settings)
	if err != nil {
		return nil, err
	}

	root, err := tree.Parse(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	version, err := detectSpecVersion(root)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	slogcontext.FromCtx(ctx).Debug("loaded spec", "location", location, "version", version, "bytes", len(raw))

	switch version {
	case 3:
		doc := &Document{Location: location, SourceVersion: 3, Root: root}
		if !settings.Validate {
			return doc, nil
		}
		loader := newLoader(settings, !remote)
		base, err := baseURL(location, remote)
		if err != nil {
			return nil, &SpecError{Code: InputError, Message: err.Error(), Location: location, Cause: err}
		}
		v3doc, err := loader.LoadFromDataWithPath(raw, base)
		if err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
		if err := validate(ctx, v3doc, location); err != nil {
			return nil, err
		}
		doc.OpenAPI = v3doc
		return doc, nil
	default:
		return loadV2(ctx, raw, location, settings)
	}
}

func loadV2(ctx context.Context, raw []byte, location string, settings Settings) (*Document, error) {
	if fixed, changed, _ := preprocessV2(raw); changed {
		raw = fixed
	}
	v3doc, err := convertV2ToV3(raw)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
	}
	if settings.Validate {
		if err := validate(ctx, v3doc, location); err != nil {
			return nil, err
		}
	}
	root, err := v2SchemaRoot(raw)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("read v2 definitions: %v", err), Location: location, Cause: err}
	}
	return &Document{Location: location, SourceVersion: 2, Root: tree.FromYAML(root), OpenAPI: v3doc}, nil
}

func validate(ctx context.Context, doc *openapi3.T, location string) error {
	err := doc.Validate(ctx)
	if err == nil {
		return nil
	}
	if canProceedDespiteValidation(err) {
		slogcontext.FromCtx(ctx).Warn("proceeding despite validation error", "location", location, "error", err)
		return nil
	}
	return mapValidateOrParseErr(err, location)
}

// read returns the raw bytes of input and its canonical location.
func read(ctx context.Context, input string, settings Settings) ([]byte, string, bool, error) {
	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && u.Host != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, input, true, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, input, true, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, input, true, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return raw, input, true, nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, input, false, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, abs, false, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return raw, abs, false, nil
}

func baseURL(location string, remote bool) (*url.URL, error) {
	if remote {
		return url.Parse(location)
	}
	return &url.URL{Path: filepath.ToSlash(location)}, nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(root tree.Node) (int, error) {
	if !root.IsMapping() {
		return 0, errors.New("spec: document is not a mapping")
	}
	if strings.HasPrefix(strings.TrimSpace(tree.StringAt(root, "openapi")), "3.") {
		return 3, nil
	}
	if strings.HasPrefix(strings.TrimSpace(tree.StringAt(root, "swagger")), "2.") {
		return 2, nil
	}
	return 0, errors.New("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	var v2 openapi2.T
	if err := yaml.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	log := slogcontext.FromCtx(ctx)
	for i := 0; i < attempts; i++ {
		body, retry, err := fetchOnce(ctx, client, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		log.Debug("fetch failed, retrying", "url", rawURL, "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

// fetchOnce performs a single GET. retry reports a transient failure.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors where
// resolution can still run, such as unresolved $ref entries which the
// resolver reports itself.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
