package main

import "github.com/opaudit/opaudit/cmd/opaudit/cmd"

func main() {
	cmd.Execute()
}
