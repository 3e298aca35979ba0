package main

import (
	"os"

	"github.com/homegate/homegate/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
