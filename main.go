package main

import "duplicateimagefinder/cmd"

func main() {
	cmd.Execute()
}
