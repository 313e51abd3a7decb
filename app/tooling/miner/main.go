// This program mines blocks against the tip of a running node and submits
// them back to it.
package main

import "github.com/ardanlabs/powchain/app/tooling/miner/cmd"

func main() {
	cmd.Execute()
}
