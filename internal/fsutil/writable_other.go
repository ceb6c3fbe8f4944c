//go:build !unix

package fsutil

import "os"

// Writable reports whether the calling process may create entries in dir.
// Platforms without access(2) get a probe file.
func Writable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
