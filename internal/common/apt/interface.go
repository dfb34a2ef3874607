package apt

import "errors"

var (
	ErrCacheUnavailable    = errors.New("unable to obtain the package cache")
	ErrPackageNotFound     = errors.New("package not found in cache")
	ErrPackageNotInstalled = errors.New("package is not installed")
	ErrMixedTransaction    = errors.New("cannot mix purge and remove in one transaction")
	ErrLockFailed          = errors.New("unable to lock the package database")
	ErrCommitFailed        = errors.New("unable to commit the changes")
)

// Package is one entry of the package index as seen at snapshot time
type Package struct {
	Name          string
	Version       string // installed version, empty when not installed
	Installed     bool
	AutoRemovable bool
	Section       string
}

// Cache defines the package-management operations the kernel thresher needs.
// This interface allows for mocking apt in tests.
type Cache interface {
	// Packages returns every package of the index, sorted by name
	Packages() ([]Package, error)

	// Lookup returns a single package by name
	Lookup(name string) (Package, bool)

	// CompareVersions orders two version strings with dpkg semantics (-1, 0, 1)
	CompareVersions(a, b string) int

	// MarkDelete schedules a package for removal, purging its configuration
	// files when purge is true
	MarkDelete(name string, purge bool) error

	// Commit applies every scheduled change in a single transaction
	Commit() error
}
