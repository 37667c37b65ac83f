package main

import "github.com/papapumpkin/cbgm/cmd"

func main() {
	cmd.Execute()
}
