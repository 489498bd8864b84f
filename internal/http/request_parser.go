// Package http serves the budget web UI.
//
// This file holds the request parsing shared by the handlers: month and page
// query parameters, path ids, and form bodies (url-encoded or JSON).

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sobres/internal/core"
)

// maxBodyBytes caps form bodies; the largest form is a transaction with a memo.
const maxBodyBytes = 64 << 10

// parseMonthParam reads ?month= as 2006-01 or 2006-01-02, defaulting to the
// month containing now.
func parseMonthParam(values url.Values, now time.Time) (core.Month, error) {
	v := strings.TrimSpace(values.Get("month"))
	if v == "" {
		return core.CurrentMonth(now), nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Month{}, core.Invalid("month", "must be a month (YYYY-MM)")
	}
	return m, nil
}

// parsePageParam reads ?page=, treating anything below 1 or unparsable as 1.
func parsePageParam(values url.Values) int {
	page, err := strconv.Atoi(strings.TrimSpace(values.Get("page")))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// parseIDParam reads a positive id from the route.
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(name, "must be a positive number")
	}
	return id, nil
}

// RequestBodyParser reads a form body once, url-encoded or JSON (hx-ext json-enc).
type RequestBodyParser struct {
	jsonData map[string]any
	formData url.Values
}

// ParseBody reads and decodes r's body.
func ParseBody(r *http.Request) (*RequestBodyParser, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	p := &RequestBodyParser{}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			return nil, core.Invalid("body", "is not valid JSON")
		}
		return p, nil
	}

	p.formData, err = url.ParseQuery(trimmed)
	if err != nil {
		return nil, core.Invalid("body", "is not a valid form")
	}
	return p, nil
}

// Get returns the trimmed value for key, without control characters.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return cleanInput(stringValue(p.jsonData[key]))
	}
	return cleanInput(p.formData.Get(key))
}

// Int returns key as an int64. Empty values are 0; garbage is a validation error.
func (p *RequestBodyParser) Int(key string) (int64, error) {
	v := p.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, core.Invalid(key, "must be a whole number")
	}
	return n, nil
}

// Bool treats checkbox values ("on") and the usual spellings of true as true.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// cleanInput drops control characters other than whitespace and trims.
func cleanInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
