package main

import "github.com/driftwatch-project/driftwatch/cmd"

func main() {
	cmd.Execute()
}
