package main

import "github.com/jakekaplan/elaiphant/cmd"

func main() {
	cmd.Execute()
}
