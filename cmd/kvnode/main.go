// Command kvnode bulk-loads a key range into a Bulk Engine and serves
// lease-based local reads off a storage node, wiring pkg/bulk and
// pkg/localread to real flags instead of only being reachable through
// unit tests.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kvnode:", err)
		os.Exit(1)
	}
}
