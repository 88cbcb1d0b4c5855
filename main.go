package main

import "github.com/KaramelBytes/datacheck-cli/cmd"

func main() {
	cmd.Execute()
}
