package archive

import "strings"

const (
	wrapPrefix = "./"
	wrapSuffix = ".tar"
)

// Wrap returns the archive name of the packed directory name.
func Wrap(name string) string {
	return wrapPrefix + name + wrapSuffix
}

// IsWrapped reports whether name is the archive name of a packed directory.
// Root elements are plain file names, so they never carry the "./" prefix.
func IsWrapped(name string) bool {
	return len(name) > len(wrapPrefix)+len(wrapSuffix) &&
		strings.HasPrefix(name, wrapPrefix) &&
		strings.HasSuffix(name, wrapSuffix)
}

// Unwrap returns the directory name of a wrapped archive name. Other names
// are returned unchanged.
func Unwrap(name string) string {
	if !IsWrapped(name) {
		return name
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, wrapPrefix), wrapSuffix)
}
