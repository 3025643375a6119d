// Command packetflow is the entry point for the PacketFlow ICCR runtime.
package main

import (
	"fmt"
	"os"

	"github.com/packetflow/iccr/cmd/packetflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "packetflow: %v\n", err)
		os.Exit(1)
	}
}
