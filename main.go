package main

import "github.com/samuelfneumann/sweeper/cmd"

func main() {
	cmd.Execute()
}
