// Package main is the entry point for the betabench application
package main

import (
	"github.com/betateam/betabench/cmd"
)

func main() {
	cmd.Execute()
}
