package main

import "github.com/chrisdamba/chowrider/cmd"

func main() {
	cmd.Execute()
}
