// File: internal/download/filename.go
package download

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// DeriveFileName extracts a local file name from a raw Content-Disposition
// header value. The segment containing "filename" (case-insensitive) is
// located, the text after its last "=" is unquoted, and a fresh unique token
// is prepended so repeated downloads sharing an original name never collide.
// The header is server-controlled, so the candidate is reduced to its final
// path element before use; a name like "../../x" cannot climb out of the
// download directory.
//
// Returns "" when the header is empty, has no filename segment, or the
// candidate name is empty after unquoting and sanitizing; callers treat that
// as "download succeeded but could not be named".
func DeriveFileName(disposition string) string {
	if disposition == "" {
		return ""
	}

	for _, segment := range strings.Split(disposition, ";") {
		if !strings.Contains(strings.ToLower(segment), "filename") {
			continue
		}

		parts := strings.Split(segment, "=")
		candidate := strings.TrimSpace(parts[len(parts)-1])
		candidate = strings.Trim(candidate, `"'`)
		candidate = sanitizeFileName(candidate)
		if candidate == "" {
			return ""
		}
		return uuid.NewString() + "_" + candidate
	}

	return ""
}

// sanitizeFileName strips any directory component from a server-supplied
// name, treating both separator styles as separators.
func sanitizeFileName(candidate string) string {
	candidate = strings.ReplaceAll(candidate, `\`, `/`)
	candidate = path.Base(candidate)
	switch candidate {
	case "", ".", "..", "/":
		return ""
	}
	return candidate
}
