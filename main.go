package main

import "github.com/tern-dl/tern/cmd"

func main() {
	cmd.Execute()
}
