package main

import "zpl-editor/internal/cli"

func main() {
	cli.Execute()
}
