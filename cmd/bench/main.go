package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/notetaker"
)

func main() {
	count := flag.Int("count", 1000, "Number of notes to generate")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	flag.Parse()

	// 1. Setup Namespace
	benchDir, err := os.MkdirTemp("", "notetaker_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	fmt.Printf("Generating %d notes in %s...\n", *count, benchDir)
	startGen := time.Now()

	// Files written by another tool: plain text, no front matter, no index yet.
	for i := 0; i < *count; i++ {
		content := fmt.Sprintf("Benchmark note %d\nwritten %s", i, time.Now().Format("2006-01-02"))
		filename := filepath.Join(benchDir, fmt.Sprintf("note_%d.md", i))
		if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	// Run 1: Cold (reconcile builds the index)
	fmt.Println("Opening + List (Run 1 - Cold)...")
	cold, items := openAndList(ctx, benchDir, logger)
	fmt.Printf("Run 1 Result: %v (Items: %d)\n", cold, items)

	// Run 2: Warm (index is on disk, files are unchanged)
	fmt.Println("Opening + List (Run 2 - Warm)...")
	warm, items := openAndList(ctx, benchDir, logger)
	fmt.Printf("Run 2 Result: %v (Items: %d)\n", warm, items)

	// Run 3: reconciler round trip on the same directory
	fmt.Println("Submitting notes through the reconciler...")
	roundTrip := submitAll(ctx, benchDir, logger, *count)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d notes):\n", *count)
	fmt.Printf("  Cold:       %v\n", cold)
	fmt.Printf("  Warm:       %v\n", warm)
	fmt.Printf("  Round trip: %v\n", roundTrip)
	fmt.Printf("--------------------------------------------------\n")
}

func openAndList(ctx context.Context, dir string, logger *slog.Logger) (time.Duration, int) {
	start := time.Now()
	backend, err := notetaker.Open(ctx, dir,
		notetaker.WithLogger(logger),
		notetaker.WithWatch(false),
	)
	if err != nil {
		panic(err)
	}
	defer backend.Close()

	list, err := backend.List(ctx)
	if err != nil {
		panic(err)
	}
	return time.Since(start), len(list)
}

// submitAll creates n notes through a session and waits until every Created
// event has reached the list.
func submitAll(ctx context.Context, dir string, logger *slog.Logger, n int) time.Duration {
	s, err := notetaker.New(ctx, dir,
		notetaker.WithLogger(logger),
		notetaker.WithWatch(false),
		notetaker.WithEventBuffer(n),
	)
	if err != nil {
		panic(err)
	}
	defer s.Close()

	want := len(s.Snapshot().Notes) + n
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := s.SetText(ctx, fmt.Sprintf("submitted %d", i)); err != nil {
			panic(err)
		}
		if err := s.Submit(ctx); err != nil {
			panic(err)
		}
	}

	timeout := time.After(time.Minute)
	for len(s.Snapshot().Notes) < want {
		select {
		case <-s.Updates():
		case <-timeout:
			panic(fmt.Sprintf("only %d of %d notes arrived", len(s.Snapshot().Notes), want))
		}
	}
	return time.Since(start)
}
