package main

import "github.com/fish-not-phish/pixurebyte/pkg/cli"

func main() {
	cli.Execute()
}
