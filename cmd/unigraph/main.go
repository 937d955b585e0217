// Command unigraph checks and queries graph databases through the unigraph
// adapters linked into the binary.
//
//	unigraph --config graph.yaml ping
//	unigraph -d neo4j --host db1 --user neo4j --password secret stats
//	unigraph -d janusgraph --host jg query "g.V().hasLabel(l).count()" -p l=person
//
// Adapters are excluded with the build tags noneo4j, noarangodb and
// nogremlin.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/syssam/unigraph"
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitUsage
	exitUnavailable
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "unigraph:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	switch unigraph.KindOf(err) {
	case unigraph.KindConnectionFailed, unigraph.KindServiceUnavailable, unigraph.KindTimeout,
		unigraph.KindAuthenticationFailed:
		return exitUnavailable
	}
	return exitError
}

// usageError reports invalid flags or arguments.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
