package storage

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// TimestampLayout prefixes every stored name (UTC).
const TimestampLayout = "20060102150405"

const fallbackStem = "audio"

// MaxStoredNameLen bounds a stored name including the timestamp prefix, the
// collision suffix and the extension. It matches the filename column width.
const MaxStoredNameLen = 200

// maxSanitizedLen leaves room for "<timestamp>_" and "-<attempt>".
var maxSanitizedLen = MaxStoredNameLen - len(TimestampLayout) - 1 - len(strconv.Itoa(maxNameAttempts-1)) - 1

// extensions longer than this are treated as part of the stem when truncating
const maxExtLen = 16

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client filename to ASCII letters, digits, '.', '_'
// and '-'. Path separators become underscores so no directory part survives.
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	s := strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")

	ext := strings.ToLower(filepath.Ext(s))
	s = strings.Trim(s, "._")
	if s == "" || "."+strings.ToLower(s) == ext {
		return truncateName(fallbackStem + ext)
	}
	return truncateName(s)
}

// truncateName shortens an ASCII name to maxSanitizedLen, keeping a short
// extension intact.
func truncateName(s string) string {
	if len(s) <= maxSanitizedLen {
		return s
	}
	ext := filepath.Ext(s)
	if len(ext) > maxExtLen {
		ext = ""
	}
	stem := strings.TrimRight(strings.TrimSuffix(s, ext)[:maxSanitizedLen-len(ext)], "._-")
	if stem == "" {
		stem = fallbackStem
	}
	return stem + ext
}

// StoredName is the timestamp-prefixed name an upload is saved under.
func StoredName(now time.Time, originalName string) string {
	return now.UTC().Format(TimestampLayout) + "_" + SanitizeFilename(originalName)
}

// withSuffix returns name for attempt 0 and name-<n>.ext afterwards.
func withSuffix(name string, attempt int) string {
	if attempt == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(attempt) + ext
}

// ValidName reports whether name can be a stored name: a single path element
// with no traversal.
func ValidName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

const maxNameAttempts = 100
