package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const genericErrorMessage = "Something went wrong"

// ValidationError is missing required local input, caught before any call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NetworkError means the call never produced an HTTP response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError carries a non-2xx response. It is embedded by AuthError and ServerError.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Payload []byte
}

func (e *HTTPError) Error() string {
	if msg, ok := payloadMessage(e.Payload); ok {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *HTTPError) httpError() *HTTPError { return e }

// AuthError is a 401 from the backend; it drives refresh-or-logout.
type AuthError struct{ HTTPError }

// ServerError is any other non-2xx response.
type ServerError struct{ HTTPError }

type responseError interface {
	error
	httpError() *HTTPError
}

// AsHTTPError unwraps either an AuthError or a ServerError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var re responseError
	if errors.As(err, &re) {
		return re.httpError(), true
	}
	return nil, false
}

// ErrorMessage turns err into something fit for a person to read. Response payloads are
// searched in order: a bare string, the "detail" field, then every field-level message
// joined by spaces. Anything else yields fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if he, ok := AsHTTPError(err); ok {
		if msg, ok := payloadMessage(he.Payload); ok {
			return msg
		}
	}
	return fallback
}

// FieldMessage returns the first message reported against field, if any.
func FieldMessage(err error, field string) (string, bool) {
	he, ok := AsHTTPError(err)
	if !ok {
		return "", false
	}
	var body map[string]json.RawMessage
	if json.Unmarshal(he.Payload, &body) != nil {
		return "", false
	}
	raw, ok := body[field]
	if !ok {
		return "", false
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 && list[0] != "" {
		return list[0], true
	}
	var single string
	if json.Unmarshal(raw, &single) == nil && single != "" {
		return single, true
	}
	return "", false
}

// DetailMessage returns the payload's "detail" field, if any.
func DetailMessage(err error) (string, bool) {
	he, ok := AsHTTPError(err)
	if !ok {
		return "", false
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(he.Payload, &body) != nil || body.Detail == "" {
		return "", false
	}
	return body.Detail, true
}

func payloadMessage(payload []byte) (string, bool) {
	body := bytes.TrimSpace(payload)
	if len(body) == 0 {
		return "", false
	}
	if !json.Valid(body) {
		return string(body), true
	}

	switch body[0] {
	case '"':
		var s string
		if json.Unmarshal(body, &s) != nil || s == "" {
			return "", false
		}
		return s, true
	case '{':
		keys, values, err := decodeOrdered(body)
		if err != nil {
			return "", false
		}
		for i, k := range keys {
			if k != "detail" {
				continue
			}
			if parts := flatten(values[i]); len(parts) > 0 {
				return strings.Join(parts, " "), true
			}
		}
		var parts []string
		for _, v := range values {
			parts = append(parts, flatten(v)...)
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, " "), true
	case '[':
		parts := flatten(body)
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

// decodeOrdered walks a JSON object keeping its key order, which encoding/json maps lose.
func decodeOrdered(body []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object")
	}

	var (
		keys   []string
		values []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, raw)
	}
	return keys, values, nil
}

func flatten(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil || s == "" {
			return nil
		}
		return []string{s}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		var out []string
		for _, it := range items {
			out = append(out, flatten(it)...)
		}
		return out
	case '{':
		_, values, err := decodeOrdered(raw)
		if err != nil {
			return nil
		}
		var out []string
		for _, v := range values {
			out = append(out, flatten(v)...)
		}
		return out
	case 'n':
		return nil
	default:
		return []string{string(raw)}
	}
}
