package main

import "github.com/nclack/mirror/cmd"

func main() {
	cmd.Execute()
}
