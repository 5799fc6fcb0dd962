package config

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func checkDirectoryAccess(dir string) error {
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("directory %q is not writable: %w", dir, err)
	}
	return nil
}
