package connector

import (
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Entry is a normalized description of one remote (or local) file or directory.
type Entry struct {
	Name     string
	Path     string
	Size     int64
	IsDir    bool
	Modified string // empty when the backend does not report it cheaply
}

// DisplayName returns the name without the trailing "/" S3 puts on prefixes.
func (e Entry) DisplayName() string {
	return strings.TrimSuffix(e.Name, "/")
}

// SortEntries orders entries directories first, then by case-insensitive name.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if a != b {
			return a < b
		}
		return entries[i].Name < entries[j].Name
	})
}

// isPseudoEntry reports whether name is the self or parent pseudo-entry.
func isPseudoEntry(name string) bool {
	return name == "." || name == ".." || name == ""
}

// normalizeName decodes names that are not valid UTF-8 as ISO-8859-1 and
// strips any directory component a server may have prepended.
func normalizeName(name string) string {
	if !utf8.ValidString(name) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().String(name); err == nil {
			name = decoded
		}
	}
	name = strings.TrimRight(name, "/")
	if strings.Contains(name, "/") {
		name = path.Base(name)
	}
	return name
}

// finalize drops pseudo entries, sorts and guarantees a non-nil slice.
func finalize(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if isPseudoEntry(strings.TrimSuffix(e.Name, "/")) {
			continue
		}
		out = append(out, e)
	}
	SortEntries(out)
	return out
}

// joinPOSIX joins a directory and a child name the way FTP and SFTP servers expect.
func joinPOSIX(dir, name string) string {
	if dir == "" {
		dir = "/"
	}
	return path.Join(dir, name)
}

// parentPOSIX returns the parent of p, never going above "/".
func parentPOSIX(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return path.Dir(strings.TrimRight(p, "/"))
}
