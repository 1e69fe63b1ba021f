package file

import (
	"path/filepath"
	"strings"
)

func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")

	if lastDot <= 0 {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return filepath.Join(dir, filename+ext)
	}

	nameWithoutExt := filename[:lastDot]

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return filepath.Join(dir, nameWithoutExt+ext)
}

const maxSanitizedLen = 80

// SanitizeName converts an arbitrary video title into a string safe to use
// as a filename on common filesystems. Unsafe characters become underscores
// and the result is capped at 80 runes.
func SanitizeName(name string) string {
	const unsafeChars = `<>:"/\|?*`

	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(unsafeChars, r) || r < 0x20 {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}

	ret := strings.TrimSpace(b.String())
	runes := []rune(ret)
	if len(runes) > maxSanitizedLen {
		ret = string(runes[:maxSanitizedLen])
	}
	if ret == "" {
		ret = "untitled"
	}
	return ret
}
