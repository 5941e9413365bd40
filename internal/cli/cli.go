package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

type commands struct {
	Serve *ServeCommand
	Index *IndexCommand
	Stats *StatsCommand
}

func buildParser(out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "siteindex"
	parser.LongDescription = "Crawl configured sites and build a per-site lemma index."

	cmds := &commands{
		Serve: &ServeCommand{globals: &globals, out: out},
		Index: &IndexCommand{globals: &globals, out: out},
		Stats: &StatsCommand{globals: &globals, out: out},
	}

	parser.AddCommand("serve", "Run the HTTP API", "Serve the indexing control and index API over HTTP.", cmds.Serve)
	parser.AddCommand("index", "Run one full indexing pass", "Index every configured site, wait for completion and print statistics.", cmds.Index)
	parser.AddCommand("stats", "Print index statistics", "Print totals and per-site indexing state.", cmds.Stats)

	return parser, &globals, cmds
}

func Run(version string) error {
	return RunWithArgs(version, nil, os.Stdout)
}

// RunWithArgs parses args (os.Args when nil) and executes the matched
// subcommand, writing command output to out.
func RunWithArgs(version string, args []string, out io.Writer) error {
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Fprintf(out, "siteindex %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(out)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}
