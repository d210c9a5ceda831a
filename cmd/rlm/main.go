package main

import "rlm/internal/cli"

func main() {
	cli.Execute()
}
