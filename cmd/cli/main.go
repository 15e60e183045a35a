// Command ucp-transcoder converts a PP/TP/DP-sharded training checkpoint
// into a universal checkpoint with one contiguous tensor per parameter.
package main

import (
	"github.com/ucp-transcoder/cmd/cli/cmd"
)

func main() {
	cmd.Execute()
}
