package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/preview"
)

// cmdServe serves an exported bundle to the browser
func cmdServe(args []string) error {
	if err := requireArgs(args, 1, "serve <bundle.zip|dir>"); err != nil {
		return err
	}
	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	b, err := bundle.Open(args[0])
	if err != nil {
		return err
	}
	defer b.Close()

	srv, err := preview.NewServer(preview.Config{
		Bundle:        b,
		Bind:          rt.cfg.Preview.Bind,
		Port:          rt.cfg.Preview.Port,
		RatePerSecond: rt.cfg.Preview.RatePerSecond,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Serving %q at http://%s (Ctrl+C to stop)\n", b.Document.Title, srv.Addr())
	return srv.ListenAndServe(ctx)
}
