package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/inkseal/cmd"
)

func main() {
	root := cmd.GetRootCmd()
	root.Run = func(c *cobra.Command, args []string) {
		banner := figure.NewColorFigure("inkseal", "small", "cyan", true)
		banner.Print()
		fmt.Println()
		fmt.Println("Run 'inkseal --help' to see available commands.")
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
