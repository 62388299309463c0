package main

import "github.com/vietddude/escalator/internal/cli"

func main() {
	cli.Execute()
}
