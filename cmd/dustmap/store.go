package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/dustmap/internal/pixelstore"
)

func runImport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "", "Map configuration JSON supplying nside/nested for bare documents")
	storePath := fs.String("store", "pixels.db", "Pixel store database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: dustmap import [-store pixels.db] FILE [FILE ...]")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	store, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		summary, err := pixelstore.ImportJSON(ctx, f, pixelstore.ImportOptions{
			Source: path,
			Nside:  cfg.GetNside(),
			Nested: cfg.GetNested(),
		}, store)
		f.Close()
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "imported %d pixels from %s (batch %s)\n", summary.Pixels, path, summary.BatchID)
	}
	return nil
}

func runPixels(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pixels", flag.ContinueOnError)
	storePath := fs.String("store", "pixels.db", "Pixel store database")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	sums, err := store.Summaries(context.Background())
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sums)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PIXEL\tNSIDE\tORDER\tSAMPLES\tCLOUDS\tWRITTEN")
	for _, s := range sums {
		order := "ring"
		if s.Nested {
			order = "nested"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%s\n", s.ID, s.Nside, order, s.Samples, (s.Width-1)/2, s.WrittenAt)
	}
	fmt.Fprintf(tw, "\n%d pixels\n", len(sums))
	return tw.Flush()
}

func runMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	storePath := fs.String("store", "pixels.db", "Pixel store database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := "version"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	// Open applies pending migrations, so "up" is implicit.
	store, err := openStore(*storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "force":
		if fs.NArg() < 2 {
			return errors.New("usage: dustmap migrate force VERSION")
		}
		v, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", fs.Arg(1), err)
		}
		if err := store.MigrateForce(v); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q (expected up, down, version or force)", action)
	}

	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
