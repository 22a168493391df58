package main

import "github.com/oshokin/fire-sentinel/cmd/fire-sentinel/cmd"

func main() {
	cmd.Execute()
}
