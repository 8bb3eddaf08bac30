package library

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizeCollection accepts either a bare JSON array or a paginated envelope with a
// "results" field and returns the items. Any other shape yields an empty, non-nil slice.
func NormalizeCollection[T any](body []byte) []T {
	items, err := DecodeCollection[T](body)
	if err != nil {
		return []T{}
	}
	return items
}

// DecodeCollection is NormalizeCollection with the reason for a fallback reported,
// so callers can log it.
func DecodeCollection[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []T{}, fmt.Errorf("empty collection body")
	}

	switch body[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return []T{}, fmt.Errorf("decode collection: %w", err)
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	case '{':
		var envelope struct {
			Results *[]T `json:"results"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return []T{}, fmt.Errorf("decode envelope: %w", err)
		}
		if envelope.Results == nil || *envelope.Results == nil {
			return []T{}, fmt.Errorf("envelope has no results")
		}
		return *envelope.Results, nil
	}
	return []T{}, fmt.Errorf("unexpected collection shape")
}
