package main

import "github.com/rustyeddy/tradekit/internal/cli"

func main() {
	cli.Execute()
}
