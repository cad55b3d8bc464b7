package main

import "github.com/bonebunny/lootledger/cmd/lootledger/cmd"

func main() {
	cmd.Execute()
}
