// Package debversion orders Debian package version strings the same way
// dpkg does.
package debversion

import (
	"errors"
	"strings"

	debver "github.com/knqyf263/go-deb-version"
)

var errEmpty = errors.New("version string is empty")

// Valid reports whether s is a well-formed [epoch:]upstream[-revision] string
func Valid(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := debver.NewVersion(s)
	return err == nil
}

// Compare compares two Debian version strings.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b
// A string that does not parse sorts before every valid version; two such
// strings are compared byte-wise so that sorting arbitrary input never fails.
func Compare(a, b string) int {
	va, errA := parse(a)
	vb, errB := parse(b)

	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return sign(va.Compare(vb))
}

func parse(s string) (debver.Version, error) {
	if strings.TrimSpace(s) == "" {
		return debver.Version{}, errEmpty
	}
	return debver.NewVersion(s)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
