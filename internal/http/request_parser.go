// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing request data: expense
// payloads, path ids and listing filters.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"safepiggy/internal/query"
)

// maxBodyBytes bounds every request body the API reads.
const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// RequestBodyParser decodes an expense submission into the loosely typed
// map the validator expects. JSON objects and form-encoded bodies are
// both accepted.
type RequestBodyParser struct {
	body        []byte
	contentType string
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Payload returns the decoded fields. An empty body is an empty payload,
// which the validator then rejects field by field.
func (p *RequestBodyParser) Payload() (map[string]any, error) {
	if p.err != nil {
		return nil, errors.Join(errInvalidBody, p.err)
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	if p.isForm() {
		values, err := url.ParseQuery(string(trimmed))
		if err != nil {
			return nil, errors.Join(errInvalidBody, err)
		}
		return formPayload(values), nil
	}

	payload := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.Join(errInvalidBody, err)
	}
	if dec.More() {
		return nil, errInvalidBody
	}
	return payload, nil
}

func (p *RequestBodyParser) isForm() bool {
	mediaType, _, err := mime.ParseMediaType(p.contentType)
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// formPayload keeps the first value of each field, as strings; the
// validator coerces amount and recurring.
func formPayload(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key := range values {
		out[key] = values.Get(key)
	}
	return out
}

// ParseID reads the {id} path segment. Anything that is not a positive
// integer cannot name a record.
func ParseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseFilter reads the listing filters from the query string.
func ParseFilter(r *http.Request) query.Filter {
	return query.FilterFromValues(r.URL.Query())
}
