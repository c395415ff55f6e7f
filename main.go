package main

import "github/chapool/go-withdrawer/cmd"

func main() {
	cmd.Execute()
}
