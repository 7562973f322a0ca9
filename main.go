package main

import "github.com/zidanDirk/foodsafety/cmd"

func main() {
	cmd.Execute()
}
