package main

import "github.com/icco/polykeys/cmd"

func main() {
	cmd.Execute()
}
