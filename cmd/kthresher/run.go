package main

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/obentoo/kthresher/internal/common/apt"
	"github.com/obentoo/kthresher/internal/common/config"
	"github.com/obentoo/kthresher/internal/common/logger"
	"github.com/obentoo/kthresher/internal/common/output"
	"github.com/obentoo/kthresher/internal/common/version"
	"github.com/obentoo/kthresher/internal/thresher"
	"github.com/spf13/cobra"
)

// run executes the root command and returns the process exit code
func (a *app) run(cmd *cobra.Command, args []string) int {
	f := &a.flags
	changed := cmd.Flags().Changed

	if f.version {
		fmt.Fprintln(a.stdout, version.Short())
		return 0
	}

	if f.noColor {
		output.NoColor()
	}
	if f.logFile {
		if err := logger.EnableFileLogging(); err != nil {
			logger.Warn("Unable to open the log file: %v", err)
		}
		defer logger.Close()
	}

	// pflag leaves the value of "-k N" as a positional argument
	if changed("keep") && f.keep == 0 && len(args) == 1 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			f.keep = n
			args = nil
		}
	}
	if len(args) > 0 {
		logger.Error("unrecognized arguments: %s", strings.Join(args, " "))
		return 1
	}
	if changed("keep") && (f.keep < 0 || f.keep > config.MaxKeep) {
		logger.Error("argument -k/--keep: invalid choice: %d (choose from 0-%d)", f.keep, config.MaxKeep)
		return 1
	}
	if !thresher.ValidFormat(f.output) {
		logger.Error("%v", fmt.Errorf("%w: got %q", thresher.ErrUnknownFormat, f.output))
		return 1
	}

	if f.verbose || f.dryRun {
		logger.SetVerbose(true)
	}
	logger.SetDebug(f.debug)

	opts, err := a.options(changed)
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	logger.Info("Options: %+v", opts)

	if f.showAutoremoval {
		logger.SetVerbose(true)
		return a.showAutoremoval()
	}
	if opts.DryRun {
		logger.Info("----- DRY RUN -----")
		return a.thresh(opts, false, changed("output"))
	}
	if opts.Purge {
		return a.thresh(opts, true, changed("output"))
	}

	if !a.isTerminal() {
		return 0
	}
	logger.Error("No argument used.")
	cmd.Help()
	return 1
}

// options resolves defaults, then the config file and its includes, then
// the flags given on the command line
func (a *app) options(changed func(string) bool) (config.Options, error) {
	f := &a.flags
	opts := config.Defaults()

	logger.Info("Attempting to read %s.", f.config)
	res, err := config.Load(f.config)
	if err != nil {
		return opts, err
	}
	for _, path := range res.Skipped {
		logger.Info("%s is empty, does not exist or has no options, ignoring.", path)
	}
	for _, ignored := range res.Ignored {
		logger.Info("Invalid setting %q, ignoring", ignored)
	}
	if len(res.Files) > 0 {
		logger.Info("Read config files: %v", res.Files)
	}
	if res.Options.IsEmpty() {
		logger.Info("No options found in config files.")
	}
	res.Options.Apply(&opts)

	if opts.Verbose {
		logger.SetVerbose(true)
	}

	if changed("dry-run") {
		opts.DryRun = f.dryRun
	}
	if changed("headers") {
		opts.Headers = f.headers
	}
	if changed("keep") {
		opts.Keep = f.keep
	}
	if changed("purge") {
		opts.Purge = f.purge
	}
	if changed("verbose") {
		opts.Verbose = f.verbose
	}

	return opts, opts.Validate()
}

func (a *app) cache() (apt.Cache, bool) {
	cache, err := a.openCache()
	if err != nil {
		logger.Error("Unable to obtain the cache!")
		logger.Debug("%v", err)
		return nil, false
	}
	return cache, true
}

// showAutoremoval lists every kernel related package available for autoremoval
func (a *app) showAutoremoval() int {
	cache, ok := a.cache()
	if !ok {
		return 1
	}

	candidates, err := thresher.New(cache).ListAutoremovable()
	if err != nil {
		logger.Error("Unable to obtain the cache!")
		logger.Debug("%v", err)
		return 1
	}

	if a.flags.output != thresher.FormatText {
		if err := thresher.RenderCandidates(a.stdout, candidates, a.flags.output); err != nil {
			logger.Error("%v", err)
			return 1
		}
		return 0
	}

	if len(candidates) == 0 {
		logger.Info("No kernel packages available for autoremoval.")
		return 0
	}

	logger.Info("List of kernel packages available for autoremoval:")
	buf := new(bytes.Buffer)
	if err := thresher.RenderCandidates(buf, candidates, thresher.FormatText); err != nil {
		logger.Error("%v", err)
		return 1
	}
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		logger.Info("%s", line)
	}
	return 0
}

// thresh keeps the newest kernels and lists or purges the others
func (a *app) thresh(opts config.Options, purge, report bool) int {
	cache, ok := a.cache()
	if !ok {
		return 1
	}
	engine := thresher.New(cache)

	release, err := a.kernelRelease()
	if err != nil {
		logger.Warn("Unable to read the running kernel release: %v", err)
	}
	running, hasRunning := engine.RunningKernel(release)
	if hasRunning {
		logger.Info("Running kernel is %s v[%s]", running.Name, running.Version)
	} else if release != "" {
		logger.Warn("No installed package found for the running kernel %s", release)
	}

	groups, err := engine.DiscoverCandidates(opts.Headers)
	if err != nil {
		logger.Error("Unable to obtain the cache!")
		logger.Debug("%v", err)
		return 1
	}
	if len(groups) == 0 {
		logger.Info("No packages available for autoremoval.")
		return 0
	}

	logger.Info("Attempting to keep %d kernel package(s)", opts.Keep)
	logger.Info("Found %d kernel image(s) installed and available for autoremoval", len(groups))

	plan, err := engine.Plan(groups, opts.Keep)
	if err != nil {
		logger.Error("%s", capitalize(err.Error()))
		return 1
	}
	logger.Info("Pre-sorting: %v", plan.Found)
	logger.Info("Post-sorting: %v", plan.Versions)

	for _, v := range plan.Removed() {
		logger.Info("\tPurging packages from version: %s", v)
		for _, name := range groups[v] {
			logger.Info("\t\tPurging: %s", name)
		}
	}

	outcome, err := engine.Execute(plan, groups, purge)
	if err != nil {
		logger.Error("%s", executeFailure(err))
		logger.Debug("%v", err)
		return 1
	}

	if hasRunning {
		outcome.Running = running.Version
	}
	if report {
		if err := outcome.Render(a.stdout, a.flags.output); err != nil {
			logger.Error("%v", err)
			return 1
		}
	}
	return 0
}

// executeFailure returns the message logged when Execute fails
func executeFailure(err error) string {
	switch {
	case errors.Is(err, apt.ErrLockFailed):
		return capitalize(apt.ErrLockFailed.Error()) + ", are you root?"
	case errors.Is(err, apt.ErrPackageNotFound),
		errors.Is(err, apt.ErrPackageNotInstalled),
		errors.Is(err, apt.ErrMixedTransaction):
		return "Unable to mark the packages for removal, nothing was committed"
	}
	return "Unable to commit the changes"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
