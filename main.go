package main

import "github.com/HaiFongPan/ducktransfer/cmd"

func main() {
	cmd.Execute()
}
