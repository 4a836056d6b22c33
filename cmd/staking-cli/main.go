package main

import "vedelegate-core/cmd/staking-cli/cmd"

func main() {
	cmd.Execute()
}
