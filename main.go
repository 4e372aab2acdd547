package main

import "github.com/sipcraft/sofiacat/cmd"

func main() {
	cmd.Execute()
}
