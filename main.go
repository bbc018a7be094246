package main

import (
	"TrackTalk/cmd"
)

func main() {
	cmd.Execute()
}
