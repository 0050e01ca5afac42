// Command tsctl is the administrative CLI for a UEFI variable-store
// deployment: it serves the SMM_VARIABLE RPC service over HTTP, inspects
// and dumps the variable index, and bootstraps the PK/KEK/db secure-boot
// key hierarchy.
package main

import (
	"fmt"
	"os"

	"github.com/arm-trusted-services/ts-core/cmd/tsctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
