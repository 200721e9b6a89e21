package download

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFileName_PrefixesUniqueToken(t *testing.T) {
	name := DeriveFileName(`attachment; filename="report.csv"`)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]+_report\.csv$`), name)
	assert.True(t, strings.HasSuffix(name, "_report.csv"))
	assert.NotContains(t, name, `"`)
}

func TestDeriveFileName_UniqueAcrossCalls(t *testing.T) {
	first := DeriveFileName(`attachment; filename="report.csv"`)
	second := DeriveFileName(`attachment; filename="report.csv"`)

	assert.NotEqual(t, first, second, "repeated downloads sharing a name must not collide")
}

func TestDeriveFileName_StripsDirectoryComponents(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		wantSuffix  string
		wantEmpty   bool
	}{
		{"relative traversal", `attachment; filename="../../../escaped.txt"`, "_escaped.txt", false},
		{"absolute path", `attachment; filename="/etc/passwd"`, "_passwd", false},
		{"windows separators", `attachment; filename="..\..\boot.ini"`, "_boot.ini", false},
		{"nested directory", `attachment; filename="a/b/c.pdf"`, "_c.pdf", false},
		{"bare dot dot", `attachment; filename=".."`, "", true},
		{"bare dot", `attachment; filename="."`, "", true},
		{"separators only", `attachment; filename="///"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveFileName(tt.disposition)
			if tt.wantEmpty {
				assert.Empty(t, got)
				return
			}
			assert.True(t, strings.HasSuffix(got, tt.wantSuffix), "got %q, want suffix %q", got, tt.wantSuffix)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, `\`)
			assert.NotContains(t, got, "..")
		})
	}
}

func TestDeriveFileName_Variants(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		wantSuffix  string
		wantEmpty   bool
	}{
		{"unquoted name", `attachment; filename=data.bin`, "_data.bin", false},
		{"single quoted", `attachment; filename='notes.txt'`, "_notes.txt", false},
		{"case insensitive marker", `attachment; FILENAME="UP.zip"`, "_UP.zip", false},
		{"extended filename segment", `attachment; filename*=UTF-8''f%20ile.txt`, "_UTF-8''f%20ile.txt", false},
		{"whitespace around name", `attachment; filename= "padded.pdf" `, "_padded.pdf", false},
		{"no filename segment", `inline`, "", true},
		{"empty header", ``, "", true},
		{"empty candidate", `attachment; filename=""`, "", true},
		{"bare equals", `attachment; filename=`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveFileName(tt.disposition)
			if tt.wantEmpty {
				assert.Empty(t, got)
				return
			}
			assert.True(t, strings.HasSuffix(got, tt.wantSuffix), "got %q, want suffix %q", got, tt.wantSuffix)
		})
	}
}
