// Package main checks api/openapi.yaml for backward-incompatible changes
// against an earlier revision of the document.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"workit/internal/apidoc"
)

func main() {
	basePath := flag.String("base", "", "base OpenAPI document (e.g. from the release branch)")
	revisionPath := flag.String("revision", "api/openapi.yaml", "revision OpenAPI document")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" || strings.TrimSpace(*revisionPath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>]")
		os.Exit(2)
	}

	baseSpec, err := apidoc.Load(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base spec: %v\n", err)
		os.Exit(1)
	}
	revisionSpec, err := apidoc.Load(*revisionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision spec: %v\n", err)
		os.Exit(1)
	}

	issues := apidoc.Compare(baseSpec, revisionSpec)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("openapi compatibility check passed")
}
