// Package cli implements the gcquake command line.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// CLI Constants
const (
	CmdCheck          = "check"
	CmdSimulate       = "simulate"
	CmdDemo           = "demo"
	CmdVersion        = "version"
	FlagTrace         = "trace"
	FlagJSON          = "json"
	FlagMetricsAddr   = "metrics-addr"
	FlagLeakMB        = "leak-mb"
	FlagMemoryLimitMB = "memory-limit-mb"
	FlagDuration      = "duration"
	FlagReportEvery   = "report-every"
	FlagSource        = "source"
	FlagVerbose       = "verbose"
)

// CLI Variables
var (
	tracePath     string
	formatJSON    bool
	metricsAddr   string
	leakMB        int
	memoryLimitMB int
	demoDuration  time.Duration
	reportEvery   time.Duration
	source        string
	verbose       bool
)

const optionsHelp = `OPTIONS is a comma separated list:

  <threshold>,<window>,<action>[,warn=<t>][,touch=<path>][,grace=<t>][,dump=<path>][,oomcmd=<cmd>]

  threshold  GC time within one window that triggers enforcement (default 30)
  window     window length (default 180)
  action     0 induces an out-of-memory failure, 1..64 delivers that signal (default 0)
  warn       GC time that touches the warning marker
  touch      warning marker path (default /tmp/gcquake_warn_gc)
  grace      delay before SIGKILL follows a delivered signal (default 5)
  dump       heap dump written before an out-of-memory failure, %p is the pid
  oomcmd     shell command run before an out-of-memory failure, %p is the pid

Times are integer seconds or Go durations such as 500ms or 2m.`

// Root command
var rootCmd = &cobra.Command{
	Use:   "gcquake",
	Short: "gcquake - detect and end garbage collection death spirals",
	Long: `gcquake watches the time a Go process spends in garbage collection and
takes a terminal action once the cumulative GC time within a fixed window
reaches a threshold.

AVAILABLE COMMANDS:
    gcquake check <options>                      # Validate and print resolved options
    gcquake simulate <options> --trace t.yaml    # Replay a pause trace through the detector
    gcquake demo <options>                       # Drive this process into a death spiral
    gcquake version                              # Show version information

` + optionsHelp,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command definitions
var (
	checkCmd = &cobra.Command{
		Use:   CmdCheck + " <options>",
		Short: "Validate an option string and print the resolved configuration",
		Long:  "Parse OPTIONS and print the resolved configuration as YAML.\n\n" + optionsHelp,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheckCmd,
	}

	simulateCmd = &cobra.Command{
		Use:   CmdSimulate + " <options>",
		Short: "Replay a GC pause trace through the detector",
		Long: `Replay a YAML or JSON pause trace through a detector configured by OPTIONS
and report when it would have warned and enforced.

A trace lists pause end times and durations:

  pauses:
    - at: 1s
      duration: 250ms
  end: 5m

` + optionsHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: runSimulateCmd,
	}

	demoCmd = &cobra.Command{
		Use:   CmdDemo + " <options>",
		Short: "Attach to this process and leak memory until gcquake intervenes",
		Long: `Attach an agent to the gcquake process itself, optionally serve Prometheus
metrics, and run a workload that leaks memory under a soft memory limit until
the collector thrashes and the agent enforces.

` + optionsHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: runDemoCmd,
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		RunE:  runVersionCmd,
	}
)

func init() {
	simulateCmd.Flags().StringVarP(&tracePath, FlagTrace, "t", "", "Pause trace file (YAML or JSON)")
	simulateCmd.Flags().BoolVar(&formatJSON, FlagJSON, false, "Output in JSON format")
	_ = simulateCmd.MarkFlagRequired(FlagTrace)

	demoCmd.Flags().StringVar(&metricsAddr, FlagMetricsAddr, "", "Serve Prometheus metrics on this address, e.g. :9090")
	demoCmd.Flags().IntVar(&leakMB, FlagLeakMB, 8, "Memory leaked per tick in MB")
	demoCmd.Flags().IntVar(&memoryLimitMB, FlagMemoryLimitMB, 256, "Soft memory limit in MB")
	demoCmd.Flags().DurationVar(&demoDuration, FlagDuration, 0, "Stop after this long (0 runs until enforcement)")
	demoCmd.Flags().DurationVar(&reportEvery, FlagReportEvery, 5*time.Second, "Status report interval")
	demoCmd.Flags().StringVar(&source, FlagSource, "cpu", "GC time source: cpu or pause")

	versionCmd.Flags().BoolVarP(&verbose, FlagVerbose, "v", false, "Show detailed version information")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}

// optionsArg returns the option string argument, or "" for defaults.
func optionsArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
