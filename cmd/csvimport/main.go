package main

import "github.com/NaN-tic/csvimport/internal/cli"

func main() {
	cli.Execute()
}
