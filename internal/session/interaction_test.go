// File: internal/session/interaction_test.go
package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelectIndex(t *testing.T) {
	tests := []struct {
		name  string
		pairs []optionPair
		want  map[string]string
	}{
		{
			name: "distinct entries",
			pairs: []optionPair{
				{Text: "Alpha", Value: "1"},
				{Text: "Beta", Value: "2"},
			},
			want: map[string]string{"Alpha": "1", "Beta": "2"},
		},
		{
			name: "empty values skipped",
			pairs: []optionPair{
				{Text: "A", Value: "1"},
				{Text: "B", Value: ""},
				{Text: "C", Value: "3"},
			},
			want: map[string]string{"A": "1", "C": "3"},
		},
		{
			name: "duplicate text keeps first",
			pairs: []optionPair{
				{Text: "Same", Value: "first"},
				{Text: "Same", Value: "second"},
			},
			want: map[string]string{"Same": "first"},
		},
		{
			name: "empty value does not claim the key",
			pairs: []optionPair{
				{Text: "X", Value: ""},
				{Text: "X", Value: "real"},
			},
			want: map[string]string{"X": "real"},
		},
		{
			name:  "no matches",
			pairs: nil,
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSelectIndex(tt.pairs))
		})
	}
}

func TestJSQuote(t *testing.T) {
	assert.Equal(t, `"div#main"`, jsQuote("div#main"))
	assert.Equal(t, `"a[href=\"x\"]"`, jsQuote(`a[href="x"]`))
	assert.Equal(t, `""`, jsQuote(""))
	// Script injection through a selector must not escape the literal.
	assert.Equal(t, `"\");alert(1);(\""`, jsQuote(`");alert(1);("`))
}
