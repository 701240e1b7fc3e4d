// Package archive iterates documents stored inside zip bundles.
package archive

import (
	"archive/zip"
	"fmt"
	"strings"
)

// WalkFunc is called by Walk for every regular file whose name matches
// the requested prefix. Returning an error stops the walk and the error
// is passed through to the caller.
type WalkFunc func(file *zip.File) error

// Walk opens the zip bundle at path and calls fn for every regular file
// entry under prefix. An empty prefix visits every file. Entries that
// could escape an extraction directory (absolute names or names with
// ".." components) abort the walk.
func Walk(path, prefix string, fn WalkFunc) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if escapesRoot(name) {
			return fmt.Errorf("bundle entry %q: unsafe path", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// escapesRoot reports whether a zip entry name could point outside the
// bundle root. Zip names always use forward slashes, but hostile
// archives show up with backslash separators too.
func escapesRoot(name string) bool {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return true
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}
