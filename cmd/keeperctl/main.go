package main

import "github.com/seantiz/keeper/internal/cli"

func main() {
	cli.Execute()
}
