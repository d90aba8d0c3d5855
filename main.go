package main

import "github.com/irfan-khan-96/ruff-web/cmd"

func main() {
	cmd.Execute()
}
