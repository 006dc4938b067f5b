package main

import "github.com/podattest/pod/cmd/pod-server/cmds"

func main() {
	cmds.Execute()
}
