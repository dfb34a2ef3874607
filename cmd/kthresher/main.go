package main

import (
	"fmt"
	"io"
	"os"

	"github.com/obentoo/kthresher/internal/common/apt"
	"github.com/obentoo/kthresher/internal/common/config"
	"github.com/obentoo/kthresher/internal/common/output"
	"github.com/obentoo/kthresher/internal/thresher"
	"github.com/spf13/cobra"
)

// cliFlags holds the raw command line values
type cliFlags struct {
	config          string
	dryRun          bool
	headers         bool
	keep            int
	purge           bool
	showAutoremoval bool
	verbose         bool
	debug           bool
	version         bool
	output          string
	noColor         bool
	logFile         bool
}

// app carries the flags and the collaborators of one invocation
type app struct {
	flags  cliFlags
	stdout io.Writer

	openCache     func() (apt.Cache, error)
	kernelRelease func() (string, error)
	isTerminal    func() bool
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		openCache: func() (apt.Cache, error) {
			return apt.Open()
		},
		kernelRelease: apt.KernelRelease,
		isTerminal:    output.IsTerminal,
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kthresher",
		Short: "Purge Unused Kernels.",
		Long: `Purge unused kernel images and headers.

kthresher lists the installed kernels that apt considers available for
autoremoval, keeps the newest N of them and purges the rest. The running
kernel, kernels marked NeverAutoRemove and manually installed kernels are
never touched.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(a.run(cmd, args))
		},
	}
	cmd.SetOut(a.stdout)

	f := cmd.Flags()
	f.StringVarP(&a.flags.config, "config", "c", config.DefaultPath, "Config file")
	f.BoolVarP(&a.flags.dryRun, "dry-run", "d", false, "List unused kernel images available to purge (dry run). Is always verbose.")
	f.BoolVarP(&a.flags.headers, "headers", "H", false, "Include the search for kernel headers.")
	f.IntVarP(&a.flags.keep, "keep", "k", 1, "Number of kernels to keep (0-9), a bare -k keeps 0")
	f.Lookup("keep").NoOptDefVal = "0"
	f.BoolVarP(&a.flags.purge, "purge", "p", false, "Purge Unused Kernels.")
	f.BoolVarP(&a.flags.showAutoremoval, "show-autoremoval", "s", false, "Show kernel packages available for autoremoval.")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Be verbose.")
	f.BoolVar(&a.flags.debug, "debug", false, "Also log the underlying apt/dpkg errors")
	f.BoolVarP(&a.flags.version, "version", "V", false, "Print version.")
	f.StringVarP(&a.flags.output, "output", "o", thresher.FormatText, "Report format: text, yaml or json")
	f.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	f.BoolVar(&a.flags.logFile, "log-file", false, "Also write the log to $XDG_STATE_HOME/kthresher/logs")

	cmd.AddCommand(newCompletionCmd(cmd))
	return cmd
}

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
