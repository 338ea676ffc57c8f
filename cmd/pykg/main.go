package main

import "github.com/mvp-joe/pykg/internal/cli"

func main() {
	cli.Execute()
}
