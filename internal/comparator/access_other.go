//go:build !unix

package comparator

// Execute permission is not observable; exec reports the failure instead.
func access(path string) error { return nil }
