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

	if err := rootApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "boursenews:", err)
		stop()
		os.Exit(1)
	}
}
