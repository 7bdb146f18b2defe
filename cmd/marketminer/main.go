package main

import (
	"market-miner/internal/cli"
)

func main() {
	cli.Execute()
}
