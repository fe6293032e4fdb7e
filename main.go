package main

import "github.com/zsprackett/usagebar/internal/cli"

func main() {
	cli.Execute()
}
