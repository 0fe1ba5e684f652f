//go:build unix

package comparator

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func access(path string) error {
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("%s is not executable: %w", path, err)
	}
	return nil
}
