package main

import "github.com/OpenTraceLab/OpenTraceFriend/cmd/friend/cmd"

func main() {
	cmd.Execute()
}
