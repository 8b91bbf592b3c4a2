package main

import (
	"delta-guard/internal/cli"
)

func main() {
	cli.Execute()
}
