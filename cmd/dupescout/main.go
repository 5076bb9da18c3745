package main

import (
	"fmt"
	"os"

	"github.com/ivoronin/dupescout/internal/types"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

// Exit codes: 0 success, 1 usage error, 2 delete failure, 130 cancelled.
func run() int {
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dupescout: "+err.Error())
		switch types.KindOf(err) {
		case types.KindDelete:
			return 2
		case types.KindCancelled:
			return 130
		default:
			return 1
		}
	}
	return 0
}
