// policyctl builds, validates and submits cluster policies from the command
// line using the same constraint model as the policy builder service.
//
// Usage:
//
//	# List the supported attributes and their modes
//	policyctl attributes
//
//	# Build one constraint
//	policyctl build autoscale.max_workers --mode range --min 1 --max 10
//
//	# Validate a definition file (JSON or YAML)
//	policyctl validate policy.yaml
//
//	# Create or update a policy in the workspace
//	policyctl submit policy.yaml --name "Small clusters"
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
