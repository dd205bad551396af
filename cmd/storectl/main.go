package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmehra2102/tenant-commerce/pkg/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(exitCode(err))
	}
}
