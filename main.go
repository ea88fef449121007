package main

import "chatgraph/cmd"

func main() {
	cmd.Execute()
}
