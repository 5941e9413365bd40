package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" short:"c" description:"Path to YAML config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand runs the HTTP API until interrupted.
type ServeCommand struct {
	Addr string `long:"addr" description:"Override server listen address"`

	globals *GlobalFlags
	out     io.Writer
}

// IndexCommand runs one full indexing pass and prints statistics.
type IndexCommand struct {
	globals *GlobalFlags
	out     io.Writer
}

// StatsCommand prints the statistics of the stored index.
type StatsCommand struct {
	globals *GlobalFlags
	out     io.Writer
}
