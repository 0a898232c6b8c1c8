package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// ValidationError lists the ways a document violates a schema.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}

// Validator checks values against a compiled JSON Schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile builds a Validator from a schema document.
func Compile(schemaData []byte) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Load reads and compiles the schema at path. A relative path is resolved
// against baseDir and may not escape it.
func Load(path, baseDir string) (*Validator, error) {
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	if err := validatePathWithinBase(path, baseDir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Compile(data)
}

// Validate checks v, which is encoded as JSON first. A nil error means v
// conforms.
func (v *Validator) Validate(value any) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Errors = append(verr.Errors, desc.String())
	}
	return verr
}

// Install registers a response interceptor that rejects any response whose
// data does not conform. Non-JSON payloads are validated as strings.
func Install(c *courier.Client, v *Validator) int {
	return c.Interceptors.Response.Use(func(resp *courier.Response) (*courier.Response, error) {
		if err := v.Validate(resp.Data); err != nil {
			return nil, err
		}
		return resp, nil
	}, nil)
}

func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}
