//go:build !linux

package apt

import "errors"

// KernelRelease is only meaningful on Linux
func KernelRelease() (string, error) {
	return "", errors.New("kernel release is only available on linux")
}
