// rmacsctl is the CLI client for the RMACS channel-selection daemon.
package main

import "github.com/tiiuae/rmacs/cmd/rmacsctl/commands"

func main() {
	commands.Execute()
}
