package upload

import "strings"

// CanonicalExt is the single container format all stored videos are
// normalized to before being considered ready.
const CanonicalExt = "mp4"

// allowedExtensions is the fixed allow-list of recognized raw video
// containers. mp4 is stored as-is; the rest are transcoded.
var allowedExtensions = map[string]bool{
	"mp4": true,
	"mov": true,
	"avi": true,
	"mkv": true,
}

// IsAllowed reports whether the filename carries a recognized video
// extension. Filenames without a dot are rejected. This is the sole gate
// before any uploaded bytes touch storage.
func IsAllowed(filename string) bool {
	return allowedExtensions[Ext(filename)]
}

// Ext extracts the lowercase extension after the last dot, or "" when
// there is none.
func Ext(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx == -1 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// TitleFor derives the default display title: the original filename with
// its extension stripped.
func TitleFor(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[:idx]
	}
	return filename
}
