package main

import "github.com/podattest/pod/cmd/pod-client/cmds"

func main() {
	cmds.Execute()
}
