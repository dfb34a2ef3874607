package apt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/obentoo/kthresher/internal/common/debversion"
)

// dpkgQueryFormat produces one tab separated line per package
const dpkgQueryFormat = "${Package}\t${Version}\t${Section}\t${db:Status-Abbrev}\n"

// lockErrorPatterns are the apt/dpkg messages printed when the database lock
// cannot be taken, usually because the caller is not root
var lockErrorPatterns = []string{
	"Could not open lock file",
	"Could not get lock",
	"Unable to acquire the dpkg frontend lock",
	"Unable to lock the administration directory",
	"are you root?",
}

// CommandRunner executes an external command with extra environment
// variables and returns its stdout and stderr
type CommandRunner func(env []string, name string, args ...string) (stdout, stderr string, err error)

// Mark is a pending deletion
type Mark struct {
	Name  string
	Purge bool
}

// AptCache is a snapshot of the dpkg database combined with apt's
// autoremove view, able to commit removals through apt-get
type AptCache struct {
	packages []Package
	index    map[string]int
	marks    []Mark
	run      CommandRunner
}

// Option configures an AptCache
type Option func(*AptCache)

// WithRunner replaces the command runner, used by tests
func WithRunner(r CommandRunner) Option {
	return func(c *AptCache) {
		c.run = r
	}
}

// Open takes a snapshot of the package index.
// Any failure to read it is reported as ErrCacheUnavailable.
func Open(opts ...Option) (*AptCache, error) {
	c := &AptCache{
		index: make(map[string]int),
		run:   runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.load(); err != nil {
		return nil, errors.Join(ErrCacheUnavailable, err)
	}
	return c, nil
}

// runCommand executes a command with a C locale so that output stays parseable
func runCommand(env []string, name string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Env = append(cmd.Env, env...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

func (c *AptCache) load() error {
	stdout, stderr, err := c.run(nil, "dpkg-query", "-W", "-f", dpkgQueryFormat)
	if err != nil {
		return commandError("dpkg-query", stderr, err)
	}
	packages := ParseDpkgQueryOutput(stdout)

	stdout, stderr, err = c.run(nil, "apt-get", "--simulate", "autoremove")
	if err != nil {
		return commandError("apt-get --simulate autoremove", stderr, err)
	}
	removable := ParseAutoremoveOutput(stdout)

	for i := range packages {
		if _, ok := removable[packages[i].Name]; ok && packages[i].Installed {
			packages[i].AutoRemovable = true
		}
	}

	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	c.packages = packages
	for i, pkg := range packages {
		c.index[pkg.Name] = i
	}
	return nil
}

func commandError(what, stderr string, err error) error {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%s: %w: %s", what, err, msg)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ParseDpkgQueryOutput parses the output of dpkg-query -W with dpkgQueryFormat.
// A package is installed when the second status letter is 'i'.
func ParseDpkgQueryOutput(output string) []Package {
	var packages []Package

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) != 4 || fields[0] == "" {
			continue
		}

		status := fields[3]
		installed := len(status) >= 2 && status[1] == 'i'

		pkg := Package{
			Name:      strings.TrimSpace(fields[0]),
			Section:   strings.TrimSpace(fields[2]),
			Installed: installed,
		}
		if installed {
			pkg.Version = strings.TrimSpace(fields[1])
		}
		packages = append(packages, pkg)
	}

	return packages
}

// ParseAutoremoveOutput extracts the packages apt-get would autoremove.
// Simulation lines look like: Remv linux-image-5.4.0-42-generic [5.4.0-42.46]
func ParseAutoremoveOutput(output string) map[string]string {
	removable := make(map[string]string)

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "Remv" {
			continue
		}

		name := fields[1]
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}

		version := ""
		if len(fields) >= 3 {
			version = strings.Trim(fields[2], "[]")
		}
		removable[name] = version
	}

	return removable
}

// Packages returns a copy of the snapshot, sorted by name
func (c *AptCache) Packages() ([]Package, error) {
	out := make([]Package, len(c.packages))
	copy(out, c.packages)
	return out, nil
}

// Lookup returns a package by name
func (c *AptCache) Lookup(name string) (Package, bool) {
	i, ok := c.index[name]
	if !ok {
		return Package{}, false
	}
	return c.packages[i], true
}

// CompareVersions orders two versions the way dpkg does
func (c *AptCache) CompareVersions(a, b string) int {
	return debversion.Compare(a, b)
}

// MarkDelete schedules an installed package for removal.
// A transaction is either all purges or all plain removals.
func (c *AptCache) MarkDelete(name string, purge bool) error {
	pkg, ok := c.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}
	if !pkg.Installed {
		return fmt.Errorf("%w: %s", ErrPackageNotInstalled, name)
	}

	for _, m := range c.marks {
		if m.Purge != purge {
			return ErrMixedTransaction
		}
		if m.Name == name {
			return nil
		}
	}

	c.marks = append(c.marks, Mark{Name: name, Purge: purge})
	return nil
}

// Marks returns the pending deletions in the order they were made
func (c *AptCache) Marks() []Mark {
	out := make([]Mark, len(c.marks))
	copy(out, c.marks)
	return out
}

// Commit runs a single apt-get transaction for every pending mark.
// Nothing is run when there are no marks.
func (c *AptCache) Commit() error {
	if len(c.marks) == 0 {
		return nil
	}

	verb := "remove"
	if c.marks[0].Purge {
		verb = "purge"
	}

	args := []string{
		"-y",
		"-o", "Dpkg::Options::=--force-confdef",
		"-o", "Dpkg::Options::=--force-confold",
		verb,
	}
	for _, m := range c.marks {
		args = append(args, m.Name)
	}

	_, stderr, err := c.run([]string{"DEBIAN_FRONTEND=noninteractive"}, "apt-get", args...)
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if isLockError(msg) {
			return errors.Join(ErrLockFailed, errors.New(msg))
		}
		if msg != "" {
			return errors.Join(ErrCommitFailed, errors.New(msg))
		}
		return errors.Join(ErrCommitFailed, err)
	}

	c.marks = nil
	return nil
}

func isLockError(stderr string) bool {
	for _, pattern := range lockErrorPatterns {
		if strings.Contains(stderr, pattern) {
			return true
		}
	}
	return false
}

// Ensure AptCache implements Cache interface
var _ Cache = (*AptCache)(nil)
