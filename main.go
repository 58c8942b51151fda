package main

import "riffloop/cmd"

func main() {
	cmd.Execute()
}
