package main

import "github.com/gradebook/apiserver/cmd"

func main() {
	cmd.Execute()
}
