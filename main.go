package main

import "github.com/stesla/tn3287/cmd"

func main() {
	cmd.Execute()
}
