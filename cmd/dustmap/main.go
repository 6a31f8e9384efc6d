// Command dustmap renders 3D dust extinction maps from cloud-model samples.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/dustmap/internal/config"
	"github.com/banshee-data/dustmap/internal/version"
)

type command struct {
	name  string
	usage string
	run   func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"render", "Render an extinction map at one distance modulus", runRender},
	{"profile", "Render extinction against distance modulus with percentile bands", runProfile},
	{"import", "Import a JSON cloud document into a pixel store", runImport},
	{"pixels", "List the pixels held by a store", runPixels},
	{"serve", "Serve maps and profiles over HTTP", runServe},
	{"infer", "Run the line-of-sight inference program on a star table", runInfer},
	{"migrate", "Manage the pixel store schema (up, down, version, force N)", runMigrate},
	{"version", "Show build information", runVersion},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	name := flag.Arg(0)
	if name == "help" {
		printUsage(os.Stdout)
		return
	}
	cmd, ok := lookupCommand(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err := cmd.run(flag.Args()[1:], os.Stdout); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "dustmap - 3D dust extinction maps from cloud-model samples")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: dustmap <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "  %-9s %s\n", "help", "Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'dustmap <command> -h' for the options of a command.")
}

func runVersion(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, err := fmt.Fprintln(stdout, version.String())
	return err
}

// loadConfig reads path, or the default file when path is empty and the
// default exists, or falls back to built-in defaults.
func loadConfig(path string) (*config.MapConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyMapConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadMapConfig(path)
}
