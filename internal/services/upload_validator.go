package services

import (
	"strings"

	"github.com/samber/lo"
)

// AllowedExtensions lists the accepted audio suffixes, without the dot.
var AllowedExtensions = []string{"mp3", "wav", "m4a", "webm", "mp4", "ogg"}

// IsAllowedAudio reports whether filename has a dot and an allow-listed
// suffix. Content is not inspected.
func IsAllowedAudio(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	return lo.Contains(AllowedExtensions, strings.ToLower(filename[i+1:]))
}

func allowedList() string {
	return strings.Join(lo.Map(AllowedExtensions, func(e string, _ int) string { return "." + e }), ", ")
}
