// Command factctl drives the corroboration engine from the shell: it pulls
// sources, rebuilds inferred relationships and inspects the fact graph.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
