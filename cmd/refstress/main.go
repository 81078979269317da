// Command refstress hammers refbase handles from many goroutines and reports
// whether every lifetime guarantee held.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "refstress: %v\n", err)
		stop()
		os.Exit(1)
	}
}
