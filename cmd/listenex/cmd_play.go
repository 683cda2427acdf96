package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/listenex/internal/audio"
	"github.com/felixgeelhaar/listenex/internal/audio/pcm"
	"github.com/felixgeelhaar/listenex/internal/engine"
	"github.com/felixgeelhaar/listenex/internal/tui"
)

// cmdPlay plays an exercise in the terminal
func cmdPlay(args []string) error {
	if err := requireArgs(args, 1, "play <path|example>"); err != nil {
		return err
	}
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doc, fsys, closeFn, err := loadExercise(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	if err := rt.record(ctx); err != nil {
		return err
	}
	rt.report()

	opts := rt.engineOptions()
	if rt.cfg.Audio.Enabled {
		player, err := audio.NewOtoPlayer(pcm.NewResolver(fsys), rt.cfg.Audio.SampleRate)
		if err != nil {
			slog.Warn("audio disabled", "error", err)
		} else {
			opts = append(opts, engine.WithPlayer(player))
		}
	}

	eng, err := engine.New(doc, opts...)
	if err != nil {
		return err
	}
	defer eng.Close()
	eng.SetVolume(rt.cfg.Audio.Volume)

	c, done, err := tui.Run(ctx, eng)
	if err != nil {
		return err
	}
	if !done {
		fmt.Println("Exercise left unfinished.")
		return nil
	}

	fmt.Printf("%s\n", c.Title)
	fmt.Printf("Score: %d/%d (%d%%) %s %s\n",
		c.Correct, c.Total, c.Percentage,
		renderScoreBar(float64(c.Percentage)/100, 20), c.Grade())
	return nil
}
