package http

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyJSON decodes the body into generic JSON values.
func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	return result, nil
}

// Lookup finds a header by case-insensitive name.
func (r *Response) Lookup(key string) (string, bool) {
	if v, ok := r.Headers[key]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (r *Response) Header(key string) string {
	v, _ := r.Lookup(key)
	return v
}

func (r *Response) HasHeader(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// HeaderMap returns a copy of the response headers.
func (r *Response) HeaderMap() map[string]string {
	out := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		out[k] = v
	}
	return out
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
