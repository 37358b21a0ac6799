// Command txproxy runs the JSON-RPC reverse proxy in front of the rollup
// transaction pipeline's validator and executor target tiers.
package main

import (
	"os"

	"github.com/cyw0ng95/txproxy/pkg/common"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		common.Error("txproxy exited with error: %v", err)
		os.Exit(1)
	}
}
