// Command earshot-report records one process execution into an event store
// and replaces itself with the real program. It is invoked either directly
// by a session's supervise step, by the preload hook, or through a shim link
// named after a compiler (wrapper sessions).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/majorcontext/earshot/internal/report"
)

func main() {
	var err error
	if filepath.Base(os.Args[0]) == "earshot-report" {
		err = report.Run(os.Args[1:])
	} else {
		err = report.RunShim(os.Args)
	}
	// Reaching here means the forward exec failed; mimic the shell's
	// command-not-found status so the build fails the way it would have
	// without us.
	fmt.Fprintf(os.Stderr, "earshot-report: %v\n", err)
	os.Exit(127)
}
