package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

func ParseFile(path string) (*Collection, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content, path)
}

// Parse decodes and validates a collection. Script files are resolved
// relative to the directory of path and must stay inside it. All
// validation problems are reported together.
func Parse(input []byte, path string) (*Collection, error) {
	var c Collection
	if err := yaml.Unmarshal(input, &c); err != nil {
		return nil, &ParseError{File: path, Message: err.Error()}
	}
	c.Path = path
	if c.Name == "" && path != "" {
		c.Name = collectionName(path)
	}
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}

	p := &validator{file: path, baseDir: filepath.Dir(path)}
	p.check(&c)
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return &c, nil
}

func collectionName(path string) string {
	base := filepath.Base(path)
	for _, ext := range Extensions {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type validator struct {
	file    string
	baseDir string
	errs    []error
}

func (v *validator) fail(r *Request, format string, args ...any) {
	e := &ParseError{File: v.file, Message: fmt.Sprintf(format, args...)}
	if r != nil {
		e.Line = r.Line
		e.Request = r.Name
	}
	v.errs = append(v.errs, e)
}

func (v *validator) check(c *Collection) {
	if len(c.Requests) == 0 {
		v.fail(nil, "collection has no requests")
		return
	}

	seen := make(map[string]bool, len(c.Requests))
	for i, r := range c.Requests {
		if r == nil {
			v.errs = append(v.errs, &ParseError{File: v.file, Message: fmt.Sprintf("request %d is empty", i+1)})
			continue
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("request %d", i+1)
		}
		if seen[r.Name] {
			v.fail(r, "duplicate request name")
		}
		seen[r.Name] = true

		if r.Method == "" {
			r.Method = "GET"
		}
		r.Method = strings.ToUpper(r.Method)
		if !http.IsValidMethod(r.Method) {
			v.fail(r, "unsupported method %s", r.Method)
		}
		if strings.TrimSpace(r.URL) == "" {
			v.fail(r, "missing url")
		}
		if r.Timeout < 0 || r.Retry < 0 || r.RetryDelay < 0 {
			v.fail(r, "timeout, retry and retryDelay must not be negative")
		}

		r.PreRequest = v.script(r, "preRequest", r.PreRequest, r.PreRequestFile)
		r.Test = v.script(r, "test", r.Test, r.TestFile)

		if len(c.Headers) > 0 {
			merged := make(map[string]string, len(c.Headers)+len(r.Headers))
			for k, val := range c.Headers {
				merged[k] = val
			}
			for k, val := range r.Headers {
				merged[k] = val
			}
			r.Headers = merged
		}
	}

	for _, r := range c.Requests {
		if r == nil {
			continue
		}
		for _, dep := range r.Depends {
			if !seen[dep] {
				v.fail(r, "depends on unknown request %q", dep)
			}
		}
	}
}

// script returns the script body for a phase, loading it from file when
// one is referenced.
func (v *validator) script(r *Request, field, inline, file string) string {
	if file == "" {
		return inline
	}
	if strings.TrimSpace(inline) != "" {
		v.fail(r, "both %s and %sFile are set", field, field)
		return inline
	}

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.baseDir, path)
	}
	if err := validatePathWithinBase(path, v.baseDir); err != nil {
		v.fail(r, "%sFile: %v", field, err)
		return ""
	}
	content, err := os.ReadFile(path)
	if err != nil {
		v.fail(r, "%sFile: %v", field, err)
		return ""
	}
	return string(content)
}

// validatePathWithinBase checks that path does not escape baseDir.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolving base directory: %w", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s is outside %s", path, baseDir)
	}
	return nil
}
