package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/banshee-data/dustmap/internal/api"
	"github.com/banshee-data/dustmap/internal/dustmap"
)

func runServe(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var mf mapFlags
	mf.register(fs)
	listen := fs.String("listen", ":8080", "Listen address")
	preload := fs.Bool("preload", true, "Decode the store before accepting requests")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return fmt.Errorf("listen address is required")
	}
	cfg, err := mf.load(fs)
	if err != nil {
		return err
	}

	store, err := openStore(mf.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := dustmap.New(store, cfg)
	if *preload {
		m, err := p.Model(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "loaded %d pixels (nside %d, %d samples, %d clouds)\n",
			len(m.Pixels), m.Nside, m.Samples(), m.Clouds())
	}
	return api.NewServer(p, store).ListenAndServe(ctx, *listen)
}
