//go:build !unix && !windows

package store

// lockFile is a no-op where the platform has no file locks.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
