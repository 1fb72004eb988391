package main

import "github.com/kinecosystem/nostrbtc/cmd/bridgectl/cmd"

func main() {
	cmd.Execute()
}
