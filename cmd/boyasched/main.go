package main

import "github.com/example/boya-scheduler/cmd"

func main() {
	cmd.Execute()
}
