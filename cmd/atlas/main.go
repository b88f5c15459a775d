package main

import "github.com/tansive/atlas/internal/cli"

func main() {
	cli.Execute()
}
