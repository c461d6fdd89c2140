package main

import "github.com/lumenforge/lumenforge/cmd"

func main() {
	cmd.Execute()
}
