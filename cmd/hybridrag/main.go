package main

import "hybridrag/internal/cli"

func main() {
	cli.Execute()
}
