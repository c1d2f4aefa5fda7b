package main

import "github.com/mcoot/puzzlegame/internal/cli"

func main() {
	cli.Execute()
}
