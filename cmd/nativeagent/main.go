package main

import "github.com/habiliai/nativeagent/cmd/nativeagent/cmd"

func main() {
	cmd.Execute()
}
