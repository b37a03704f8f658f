package main

import (
	"os"

	"imanconnect/cmd/imanconnect/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
