// Command vsctl indexes and queries a local vector-tree index and publishes
// documents to the ingest topic.
//
// Usage:
//
//	vsctl [--config file] index   --collection fruit docs.jsonl
//	vsctl [--config file] query   --collection fruit "title:apple OR banana"
//	vsctl [--config file] publish --collection fruit docs.jsonl
package main

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/cmd/vsctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
