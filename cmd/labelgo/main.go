// Package main is the entry point for the labelgo CLI tool.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
