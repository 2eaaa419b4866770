package main

import "github.com/gherkit/gherkit/cmd"

func main() {
	cmd.Execute()
}
