package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/queue"
	"github.com/felixgeelhaar/listenex/internal/result"
)

// cmdResult shows the last recorded result
func cmdResult() error {
	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	store, err := rt.openResults(ctx)
	if err != nil {
		return err
	}
	r, err := store.Load(ctx)
	if errors.Is(err, domain.ErrNoResult) {
		fmt.Println("No result recorded yet. Play an exercise with 'listenex play'.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load result: %w", err)
	}

	fmt.Println("Last Result")
	fmt.Println("===========")
	fmt.Printf("Exercise:  %s\n", r.Title)
	fmt.Printf("Completed: %s\n", r.Timestamp.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Score:     %d/%d (%d%%) %s %s\n",
		r.Score, r.Total, r.Percentage, renderScoreBar(float64(r.Percentage)/100, 20), r.Grade())

	if len(r.Placements) == 0 {
		return nil
	}
	fmt.Println("\nPlacements")
	fmt.Println("----------")
	for _, p := range sortedPlacements(r) {
		mark := "✓"
		if !p.Correct {
			mark = "✗"
		}
		fmt.Printf("%s %-24s group %d slot %d", mark, p.Label, p.GroupID, p.SlotIndex+1)
		if !p.Correct {
			fmt.Printf(" (belongs to group %d)", p.CorrectGroupID)
		}
		fmt.Println()
	}
	return nil
}

func sortedPlacements(r result.LastResult) []domain.PlacementRecord {
	out := make([]domain.PlacementRecord, 0, len(r.Placements))
	for _, p := range r.Placements {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].SlotIndex < out[j].SlotIndex
	})
	return out
}

// cmdResults handles reported results
func cmdResults(args []string) error {
	if len(args) < 1 {
		fmt.Println(`Results commands:

  listenex results watch   Stream completions reported over AMQP`)
		return nil
	}

	switch args[0] {
	case "watch":
		return cmdResultsWatch()
	default:
		return fmt.Errorf("unknown results command: %s", args[0])
	}
}

func cmdResultsWatch() error {
	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	url := rt.cfg.Reporting.AMQP.URL
	if url == "" {
		return fmt.Errorf("no AMQP URL configured (run 'listenex init' or set LISTENEX_AMQP_URL)")
	}
	conn, err := queue.NewConnection(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewResultConsumer(conn, func(_ context.Context, msg *queue.CompletionMessage) error {
		fmt.Printf("%s  %-30s %d/%d (%3d%%) %s %s\n",
			msg.CompletedAt.Local().Format("15:04:05"), msg.Title,
			msg.Correct, msg.Total, msg.Percentage,
			renderScoreBar(float64(msg.Percentage)/100, 10), msg.Grade)
		return nil
	})
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Stop()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", queue.ResultQueueName)
	<-ctx.Done()
	return nil
}
