package main

import (
	"os"

	"github.com/smazurov/ffpanel/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
