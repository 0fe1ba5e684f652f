package main

import (
	"os"

	"github.com/gydrogen/hydrogit/cmd/hydrogit/internal"
)

func main() {
	os.Exit(internal.Execute())
}
