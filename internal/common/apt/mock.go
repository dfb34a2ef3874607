package apt

import (
	"sort"

	"github.com/obentoo/kthresher/internal/common/debversion"
)

// MockCache implements Cache for testing.
// Each method can be configured with a custom function to control behavior;
// otherwise it works on the in-memory Pkgs slice and records marks and commits.
type MockCache struct {
	PackagesFunc        func() ([]Package, error)
	LookupFunc          func(name string) (Package, bool)
	CompareVersionsFunc func(a, b string) int
	MarkDeleteFunc      func(name string, purge bool) error
	CommitFunc          func() error

	Pkgs    []Package
	Marks   []Mark
	Commits int
}

// NewMockCache creates a MockCache holding the given packages
func NewMockCache(pkgs ...Package) *MockCache {
	return &MockCache{Pkgs: pkgs}
}

// Packages returns the in-memory packages sorted by name
func (m *MockCache) Packages() ([]Package, error) {
	if m.PackagesFunc != nil {
		return m.PackagesFunc()
	}
	out := make([]Package, len(m.Pkgs))
	copy(out, m.Pkgs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Lookup returns a package by name
func (m *MockCache) Lookup(name string) (Package, bool) {
	if m.LookupFunc != nil {
		return m.LookupFunc(name)
	}
	for _, pkg := range m.Pkgs {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return Package{}, false
}

// CompareVersions orders versions with dpkg semantics unless overridden
func (m *MockCache) CompareVersions(a, b string) int {
	if m.CompareVersionsFunc != nil {
		return m.CompareVersionsFunc(a, b)
	}
	return debversion.Compare(a, b)
}

// MarkDelete records the mark
func (m *MockCache) MarkDelete(name string, purge bool) error {
	if m.MarkDeleteFunc != nil {
		if err := m.MarkDeleteFunc(name, purge); err != nil {
			return err
		}
	}
	m.Marks = append(m.Marks, Mark{Name: name, Purge: purge})
	return nil
}

// Commit counts the call
func (m *MockCache) Commit() error {
	m.Commits++
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return nil
}

// Ensure MockCache implements Cache interface
var _ Cache = (*MockCache)(nil)
