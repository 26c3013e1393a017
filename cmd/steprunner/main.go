// Command steprunner serves the built-in steps plus any step packages linked
// into the binary through blank imports.
package main

import (
	"fmt"
	"os"

	_ "github.com/ormasoftchile/steprunner/internal/builtin"
	"github.com/ormasoftchile/steprunner/pkg/cli"
	"github.com/ormasoftchile/steprunner/pkg/discovery"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(discovery.Default, version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
