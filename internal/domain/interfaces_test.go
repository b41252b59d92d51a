package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"forward slashes", "uploads/policy.pdf", "uploads/policy.pdf"},
		{"backslashes", `uploads\policy.pdf`, "uploads/policy.pdf"},
		{"mixed", `uploads\sub/policy.pdf`, "uploads/sub/policy.pdf"},
		{"dot segments", "uploads/./policy.pdf", "uploads/policy.pdf"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSource(tt.in))
		})
	}
}

func TestNormalizeSource_SameFileSameKey(t *testing.T) {
	assert.Equal(t, NormalizeSource(`uploads\a.txt`), NormalizeSource("uploads/a.txt"))
}

func TestMetadata_KindWireValues(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindClause, "clause"},
		{KindTable, "table"},
		{KindExcelBlob, "excel-blob"},
		{KindPlainText, "plain-text"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			data, err := json.Marshal(Metadata{Source: "a.pdf", Kind: tt.kind})
			require.NoError(t, err)
			assert.JSONEq(t, `{"source":"a.pdf","kind":"`+tt.want+`"}`, string(data))
		})
	}
}
