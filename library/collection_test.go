package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCollection(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Genre
	}{
		{"bare array", `[{"id":1,"name":"Fiction"},{"id":2,"name":"Science"}]`,
			[]Genre{{ID: 1, Name: "Fiction"}, {ID: 2, Name: "Science"}}},
		{"envelope", `{"count":2,"next":null,"previous":null,"results":[{"id":1,"name":"Fiction"},{"id":2,"name":"Science"}]}`,
			[]Genre{{ID: 1, Name: "Fiction"}, {ID: 2, Name: "Science"}}},
		{"empty array", `[]`, []Genre{}},
		{"envelope with empty results", `{"results":[]}`, []Genre{}},
		{"object without results", `{"detail":"ok"}`, []Genre{}},
		{"null results", `{"results":null}`, []Genre{}},
		{"string", `"nope"`, []Genre{}},
		{"number", `42`, []Genre{}},
		{"empty body", ``, []Genre{}},
		{"broken json", `[{"id":`, []Genre{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCollection[Genre]([]byte(tt.body))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCollectionReportsFallback(t *testing.T) {
	items, err := DecodeCollection[Book]([]byte(`{"results":[{"id":3,"title":"Dune"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Title)

	items, err = DecodeCollection[Book]([]byte(`{"detail":"x"}`))
	assert.Error(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}
