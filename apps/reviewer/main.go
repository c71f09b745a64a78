package main

import (
	"fmt"
	"os"
)

func main() {
	cli := newCommandLine(os.Stdout)
	if err := cli.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
