//go:build linux || darwin || freebsd

package permission

import "golang.org/x/sys/unix"

func deviceAccessible(path string) bool {
	if path == "" {
		return true
	}
	return unix.Access(path, unix.R_OK|unix.W_OK) == nil
}
