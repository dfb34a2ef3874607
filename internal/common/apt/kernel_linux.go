//go:build linux

package apt

import "golang.org/x/sys/unix"

// KernelRelease returns the release of the running kernel, as uname -r prints it
func KernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}
