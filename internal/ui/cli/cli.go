package cli

import "flag"

const versionString = "1.0.0"
const defaultConfigPath = "./data/config/stalemap.toml"

type cliOptions struct {
	configPath string
	scan       bool
	status     bool
	changed    string
	gitSince   string
	impact     string
	plan       bool
	failing    string
	trace      string
	watch      bool
	history    bool
	since      string
	depth      int
	jsonOut    bool
	verbose    bool
	version    bool
	args       []string
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("stalemap", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.scan, "scan", false, "Build the dependency graph and persist it")
	fs.BoolVar(&opts.status, "status", false, "Report stale files and their propagation")
	fs.StringVar(&opts.changed, "changed", "", "Comma-separated explicit change list for -status")
	fs.StringVar(&opts.gitSince, "git-since", "", "Derive the change list from git since this ref")
	fs.StringVar(&opts.impact, "impact", "", "Comma-separated changed files to analyze impact for")
	fs.BoolVar(&opts.plan, "plan", false, "Build a repair plan from failing tests")
	fs.StringVar(&opts.failing, "failing", "", "Comma-separated failing test list for -plan")
	fs.StringVar(&opts.trace, "trace", "", "Print the shortest import chain (<from>:<to>)")
	fs.BoolVar(&opts.watch, "watch", false, "Watch the source tree and report staleness incrementally")
	fs.BoolVar(&opts.history, "history", false, "List recorded run snapshots")
	fs.StringVar(&opts.since, "since", "", "Restrict -history to snapshots at/after this timestamp (RFC3339 or YYYY-MM-DD)")
	fs.IntVar(&opts.depth, "depth", 0, "Propagation/impact depth override")
	fs.BoolVar(&opts.jsonOut, "json", false, "Emit machine-readable JSON instead of text")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
