package main

import "github.com/moose-rewards/moose/internal/cli"

func main() {
	cli.Execute()
}
