package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/harbor/internal/core/deployment"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

var (
	errConfigLoad       = errors.New("configuration error")
	errDeploymentFailed = errors.New("deployment failed")
	errVagrantFailed    = errors.New("vagrant failed")
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Interrupts cancel the running external command
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if remedy := deployment.Remedy(err); remedy != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", remedy)
	}

	if errors.Is(err, errConfigLoad) {
		return ExitConfigError
	}
	return ExitFailure
}
