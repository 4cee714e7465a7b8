package main

import "github.com/agentic-research/spaceused/cmd"

func main() {
	cmd.Execute()
}
