package main

import "github.com/navidrome/crateindex/cmd"

func main() {
	cmd.Execute()
}
