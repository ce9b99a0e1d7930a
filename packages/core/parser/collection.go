package parser

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extensions lists the file suffixes recognised as collections.
var Extensions = []string{".hitscript.yaml", ".hitscript.yml"}

// IsCollectionFile reports whether path names a collection file. A bare
// ".hitscript.yaml" is the config file, not a collection.
func IsCollectionFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range Extensions {
		if len(base) > len(ext) && strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

// Collection is one parsed collection file.
type Collection struct {
	Path         string                       `yaml:"-"`
	Name         string                       `yaml:"name"`
	Description  string                       `yaml:"description"`
	Variables    map[string]any               `yaml:"variables"`
	Environments map[string]map[string]string `yaml:"environments"`
	Headers      map[string]string            `yaml:"headers"`
	Requests     []*Request                   `yaml:"requests"`
}

// Request is one entry of a collection. Scripts given by file are loaded
// into PreRequest and Test during parsing; the *File fields keep the
// original reference for diagnostics.
type Request struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Method         string            `yaml:"method"`
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	Query          map[string]string `yaml:"query"`
	Body           string            `yaml:"-"`
	Tags           []string          `yaml:"tags"`
	Skip           string            `yaml:"-"`
	Only           bool              `yaml:"only"`
	Timeout        int               `yaml:"timeout"`
	Retry          int               `yaml:"retry"`
	RetryDelay     int               `yaml:"retryDelay"`
	RetryOn        []int             `yaml:"retryOn"`
	Depends        []string          `yaml:"depends"`
	PreRequest     string            `yaml:"preRequest"`
	PreRequestFile string            `yaml:"preRequestFile"`
	Test           string            `yaml:"test"`
	TestFile       string            `yaml:"testFile"`
	Line           int               `yaml:"-"`
}

// UnmarshalYAML accepts a structured body (encoded as JSON) and a boolean
// or string skip.
func (r *Request) UnmarshalYAML(value *yaml.Node) error {
	type plain Request
	var raw struct {
		plain `yaml:",inline"`
		Body  any `yaml:"body"`
		Skip  any `yaml:"skip"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*r = Request(raw.plain)
	r.Line = value.Line

	switch b := raw.Body.(type) {
	case nil:
	case string:
		r.Body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("line %d: encoding body: %w", value.Line, err)
		}
		r.Body = string(data)
	}

	switch s := raw.Skip.(type) {
	case nil:
	case bool:
		if s {
			r.Skip = "skipped"
		}
	case string:
		r.Skip = s
	default:
		return fmt.Errorf("line %d: skip must be a boolean or a reason", value.Line)
	}
	return nil
}

// HasScripts reports whether the request carries any script.
func (r *Request) HasScripts() bool {
	return strings.TrimSpace(r.PreRequest) != "" || strings.TrimSpace(r.Test) != ""
}

// Request returns the request named name, or nil.
func (c *Collection) Request(name string) *Request {
	for _, r := range c.Requests {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// ParseError locates a problem in a collection file.
type ParseError struct {
	File    string
	Line    int
	Request string
	Message string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	} else if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Request != "" {
		fmt.Fprintf(&b, "request %q: ", e.Request)
	}
	b.WriteString(e.Message)
	return b.String()
}
