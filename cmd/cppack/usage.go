package main

import (
	"flag"
	"fmt"
	"os"
)

// usage returns a flag.FlagSet usage function that prints help before the
// flag defaults, the same shape every teacher verb uses.
func usage(fset *flag.FlagSet, help string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, help)
		fset.PrintDefaults()
	}
}
