// Package thresher selects obsolete kernel packages for removal.
//
// A run goes Discover -> Plan -> Execute. Discovery groups the installed,
// auto-removable kernel images (and optionally headers) by version; planning
// sorts the versions with dpkg ordering and keeps the newest N; execution
// either reports the remaining versions or purges them in one transaction.
//
// The running kernel and kernels marked NeverAutoRemove or installed manually
// are never flagged auto-removable by apt, so they never become candidates.
package thresher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/obentoo/kthresher/internal/common/apt"
)

var (
	kernelImageRegex  = regexp.MustCompile(`^linux-image-.*$`)
	kernelHeaderRegex = regexp.MustCompile(`^linux-(\w+-)?headers-.*$`)
	kernelAnyRegex    = regexp.MustCompile(`^linux-(image|(\w+-)?headers)-.*$`)
)

// VersionGroup maps an installed version to the package names sharing it,
// in the order they were found
type VersionGroup map[string][]string

// Versions returns the group keys in no particular order
func (g VersionGroup) Versions() []string {
	versions := make([]string, 0, len(g))
	for v := range g {
		versions = append(versions, v)
	}
	return versions
}

// Candidate is a kernel related package available for autoremoval
type Candidate struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// Engine runs the retention algorithm against a package cache
type Engine struct {
	cache apt.Cache
}

// New creates an Engine backed by cache
func New(cache apt.Cache) *Engine {
	return &Engine{cache: cache}
}

func removable(pkg apt.Package) bool {
	return pkg.Installed && pkg.AutoRemovable
}

// IsKernelImage reports whether pkg is a kernel image package
func IsKernelImage(pkg apt.Package) bool {
	return kernelImageRegex.MatchString(pkg.Name) && strings.Contains(pkg.Section, "kernel")
}

// IsKernelHeader reports whether pkg is a kernel header package.
// Headers are not filtered by section.
func IsKernelHeader(pkg apt.Package) bool {
	return kernelHeaderRegex.MatchString(pkg.Name)
}

// DiscoverCandidates groups installed, auto-removable kernel images by
// version. With includeHeaders, headers are appended to the group of their
// own installed version; association is by exact version string only.
func (e *Engine) DiscoverCandidates(includeHeaders bool) (VersionGroup, error) {
	pkgs, err := e.cache.Packages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apt.ErrCacheUnavailable, err)
	}

	groups := make(VersionGroup)
	for _, pkg := range pkgs {
		if removable(pkg) && IsKernelImage(pkg) {
			groups[pkg.Version] = append(groups[pkg.Version], pkg.Name)
		}
	}

	if includeHeaders {
		for _, pkg := range pkgs {
			if removable(pkg) && IsKernelHeader(pkg) {
				groups[pkg.Version] = append(groups[pkg.Version], pkg.Name)
			}
		}
	}

	return groups, nil
}

// ListAutoremovable returns every installed, auto-removable kernel image or
// header package, sorted by name
func (e *Engine) ListAutoremovable() ([]Candidate, error) {
	pkgs, err := e.cache.Packages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apt.ErrCacheUnavailable, err)
	}

	var candidates []Candidate
	for _, pkg := range pkgs {
		if removable(pkg) && kernelAnyRegex.MatchString(pkg.Name) {
			candidates = append(candidates, Candidate{Name: pkg.Name, Version: pkg.Version})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates, nil
}

// RunningKernel looks up the image package of the running kernel.
// The boolean is false when the release is unknown or has no package.
func (e *Engine) RunningKernel(release string) (apt.Package, bool) {
	if release == "" {
		return apt.Package{}, false
	}
	pkg, ok := e.cache.Lookup("linux-image-" + release)
	if !ok || !pkg.Installed {
		return apt.Package{}, false
	}
	return pkg, true
}

// Plan sorts the discovered versions with the cache's version ordering and
// splits them according to keep
func (e *Engine) Plan(groups VersionGroup, keep int) (*Plan, error) {
	return PlanRetention(groups, keep, e.cache.CompareVersions)
}

// Execute acts on every version the plan removes. Without purge it only
// reports; with purge every package is marked for deletion including its
// configuration files and the cache is committed once for the whole batch.
func (e *Engine) Execute(plan *Plan, groups VersionGroup, purge bool) (*Outcome, error) {
	outcome := &Outcome{Purged: purge, Keep: plan.Keep, Retained: plan.Retained()}

	for _, version := range plan.Removed() {
		names := groups[version]
		outcome.Removals = append(outcome.Removals, Removal{
			Version:  version,
			Packages: append([]string(nil), names...),
		})

		if !purge {
			continue
		}
		for _, name := range names {
			if err := e.cache.MarkDelete(name, true); err != nil {
				return nil, fmt.Errorf("marking %s: %w", name, err)
			}
		}
	}

	if purge {
		if err := e.cache.Commit(); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}
