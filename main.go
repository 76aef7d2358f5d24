package main

import "github.com/strangelove-ventures/cctp-vault-orchestrator/cmd"

func main() {
	cmd.Execute()
}
