package main

import (
	cmd "github.com/kerbaras/mangafetch/cmd/mangas"
)

func main() {
	cmd.Execute()
}
