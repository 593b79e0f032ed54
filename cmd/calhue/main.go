// Calhue - Dominant colour extraction for calendar pages
//
// Calhue picks a small set of perceptually distinct colours from each image
// and caches the result alongside it.
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"os"

	"github.com/jmylchreest/calhue/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
