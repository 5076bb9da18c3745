package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/ivoronin/dupescout/internal/progress"
)

// newCLISink builds the progress sink for terminal runs: a stderr
// spinner for counters, warnings printed above it, and per-stage
// statistics when verbose. The sink serializes internally, so pipeline
// workers may call it from any goroutine.
func newCLISink(showProgress, verbose bool) (progress.Sink, *progress.Bar) {
	bar := progress.NewBar(showProgress, -1)
	var mu sync.Mutex

	sink := func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()

		switch ev := e.(type) {
		case progress.ScanProgress:
			bar.Describe(fmt.Sprintf("Scanning: %d files seen", ev.FilesSeen))
		case progress.StageProgress:
			bar.Describe(fmt.Sprintf("Hashing (%s): %d/%d", ev.Stage, ev.Done, ev.Total))
			if verbose && ev.Done == ev.Total {
				bar.ClearLine()
				fmt.Fprintf(os.Stderr, "stage %s: hashed %d files\n", ev.Stage, ev.Total)
			}
		case progress.Warning:
			bar.ClearLine()
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", ev.Path, ev.Message)
		case progress.Done:
			bar.Finish(ev.Summary)
		}
	}
	return sink, bar
}
