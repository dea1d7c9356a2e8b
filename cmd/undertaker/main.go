package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gnolang/undertaker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrDefects) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
