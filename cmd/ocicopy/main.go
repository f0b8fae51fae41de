package main

import "github.com/aweris/ocicopy/cmd/ocicopy/cmd"

func main() {
	cmd.Execute()
}
