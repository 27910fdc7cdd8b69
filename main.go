package main

import (
	"audioshare/cmd"
)

func main() {
	cmd.Execute()
}
