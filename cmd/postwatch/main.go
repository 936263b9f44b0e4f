package main

import "github.com/vietddude/postwatch/internal/cli"

func main() {
	cli.Execute()
}
