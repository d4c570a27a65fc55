package main

import (
	"fmt"
	"os"

	"github.com/seqra/seqra/cmd/seqra/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
