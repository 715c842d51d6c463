// folderview lists folders through the virtual list engine: an owner-data
// list session with a shared thumbnail cache, condition filters and an
// optional PostgreSQL search index.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
