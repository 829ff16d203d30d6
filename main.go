package main

import "github.com/cadenza-player/cadenza/cmd"

func main() {
	cmd.Execute()
}
