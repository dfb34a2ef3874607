package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/ini.v1"
)

const (
	// DefaultPath is read when no config file is given on the command line
	DefaultPath = "/etc/kthresher.conf"
	// DefaultSection holds the options inside a config file
	DefaultSection = "main"
	// MaxKeep is the largest accepted retention count
	MaxKeep = 9
)

var (
	ErrParse       = errors.New("file contains parsing errors")
	ErrIncludeLoop = errors.New("looping config files, aborting")
	ErrInvalidKeep = errors.New(`"keep" should be between 0-9`)
	ErrInvalidBool = errors.New("value is not a boolean")
	ErrInvalidInt  = errors.New("value is not an integer")
)

// Options are the effective settings of one run
type Options struct {
	DryRun  bool `yaml:"dry_run"`
	Headers bool `yaml:"headers"`
	Keep    int  `yaml:"keep"`
	Purge   bool `yaml:"purge"`
	Verbose bool `yaml:"verbose"`
}

// Defaults returns the built-in options: keep one kernel, list nothing
func Defaults() Options {
	return Options{Keep: 1}
}

// Validate checks option ranges
func (o Options) Validate() error {
	if o.Keep < 0 || o.Keep > MaxKeep {
		return fmt.Errorf("%w: got %d", ErrInvalidKeep, o.Keep)
	}
	return nil
}

// FileOptions holds the options found in config files. A nil field was not
// set by any file.
type FileOptions struct {
	Headers *bool
	Include *string
	Keep    *int
	Purge   *bool
	Verbose *bool
}

// Apply overrides opts with every option set in f
func (f FileOptions) Apply(opts *Options) {
	if f.Headers != nil {
		opts.Headers = *f.Headers
	}
	if f.Keep != nil {
		opts.Keep = *f.Keep
	}
	if f.Purge != nil {
		opts.Purge = *f.Purge
	}
	if f.Verbose != nil {
		opts.Verbose = *f.Verbose
	}
}

// override copies every option set in other over f
func (f *FileOptions) override(other FileOptions) {
	if other.Headers != nil {
		f.Headers = other.Headers
	}
	if other.Include != nil {
		f.Include = other.Include
	}
	if other.Keep != nil {
		f.Keep = other.Keep
	}
	if other.Purge != nil {
		f.Purge = other.Purge
	}
	if other.Verbose != nil {
		f.Verbose = other.Verbose
	}
}

// IsEmpty reports whether no option was set
func (f FileOptions) IsEmpty() bool {
	return f.Headers == nil && f.Include == nil && f.Keep == nil && f.Purge == nil && f.Verbose == nil
}

// Result describes what loading a config file and its includes produced
type Result struct {
	Options FileOptions
	// Files lists every file that was read, in load order
	Files []string
	// Skipped lists files that were missing, empty or had no options
	Skipped []string
	// Ignored lists unknown settings as "file: key"
	Ignored []string
}

// Load reads the [main] section of path and every file it includes.
// A missing or empty file yields an empty result, not an error.
func Load(path string) (*Result, error) {
	return LoadSection(path, DefaultSection)
}

// LoadSection reads section from path and every file it includes.
// Included files are read in sorted glob order and override the options of
// the file that includes them. Reaching a file again on the same include
// chain fails with ErrIncludeLoop.
func LoadSection(path, section string) (*Result, error) {
	res := &Result{}
	if err := load(path, section, make(map[string]bool), res); err != nil {
		return nil, err
	}
	return res, nil
}

func load(path, section string, visited map[string]bool, res *Result) error {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	if visited[key] {
		return fmt.Errorf("%w: %s", ErrIncludeLoop, path)
	}
	visited[key] = true
	defer delete(visited, key)

	opts, ignored, found, err := readFile(path, section)
	if err != nil {
		return err
	}
	if !found {
		res.Skipped = append(res.Skipped, path)
		return nil
	}

	res.Files = append(res.Files, path)
	res.Ignored = append(res.Ignored, ignored...)
	res.Options.override(opts)

	if opts.Include == nil || *opts.Include == "" {
		return nil
	}

	matches, err := filepath.Glob(*opts.Include)
	if err != nil {
		return fmt.Errorf("%s: invalid include pattern %q: %w", path, *opts.Include, err)
	}
	sort.Strings(matches)

	for _, nested := range matches {
		if err := load(nested, section, visited, res); err != nil {
			return err
		}
	}
	return nil
}

// readFile parses one file. found is false when the file is missing, empty,
// lacks the section or the section has no options.
func readFile(path, section string) (opts FileOptions, ignored []string, found bool, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return opts, nil, false, nil
		}
		return opts, nil, false, statErr
	}
	if info.IsDir() || info.Size() == 0 {
		return opts, nil, false, nil
	}

	var values map[string]string
	if strings.HasSuffix(path, ".toml") {
		values, found, err = readTOML(path, section)
	} else {
		values, found, err = readINI(path, section)
	}
	if err != nil || !found {
		return opts, nil, false, err
	}

	opts, ignored, err = parseOptions(path, values)
	return opts, ignored, true, err
}

func readINI(path, section string) (map[string]string, bool, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	sec, err := cfg.GetSection(section)
	if err != nil {
		return nil, false, nil
	}

	keys := sec.Keys()
	if len(keys) == 0 {
		return nil, false, nil
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[strings.ToLower(k.Name())] = k.Value()
	}
	return values, true, nil
}

func readTOML(path, section string) (map[string]string, bool, error) {
	var doc map[string]map[string]interface{}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	table, ok := doc[section]
	if !ok || len(table) == 0 {
		return nil, false, nil
	}

	values := make(map[string]string, len(table))
	for k, v := range table {
		values[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return values, true, nil
}

// parseOptions validates raw values. Unknown keys are ignored; every invalid
// value is reported.
func parseOptions(path string, values map[string]string) (FileOptions, []string, error) {
	var opts FileOptions
	var ignored []string
	var result *multierror.Error

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := strings.TrimSpace(values[name])

		switch name {
		case "headers", "purge", "verbose":
			b, err := parseBool(raw)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: unable to get value from %q: %w", path, name, err))
				continue
			}
			switch name {
			case "headers":
				opts.Headers = &b
			case "purge":
				opts.Purge = &b
			case "verbose":
				opts.Verbose = &b
			}
		case "keep":
			n, err := strconv.Atoi(raw)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: unable to get value from %q: %w", path, name, ErrInvalidInt))
				continue
			}
			if n < 0 || n > MaxKeep {
				result = multierror.Append(result, fmt.Errorf("%s: %w: got %d", path, ErrInvalidKeep, n))
				continue
			}
			opts.Keep = &n
		case "include":
			s := raw
			opts.Include = &s
		default:
			ignored = append(ignored, path+": "+name)
		}
	}

	return opts, ignored, result.ErrorOrNil()
}

// parseBool accepts the boolean spellings of INI files
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
}
