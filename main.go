// Package main is the entry point for the hdrstack packet header decoder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/hdrstack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
