//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

func main() {
	if err := os.MkdirAll("schemas", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	for _, out := range []struct {
		path     string
		generate func() ([]byte, error)
	}{
		{"schemas/request-v1.json", schema.GenerateRequestJSONSchema},
		{"schemas/response-v1.json", schema.GenerateResponseJSONSchema},
	} {
		data, err := out.generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(out.path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote", out.path)
	}
}
