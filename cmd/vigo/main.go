package main

import (
	"fmt"
	"log"
	"os"

	"github.com/esimov/vigo/utils"
	"github.com/spf13/cobra"
)

const HelpBanner = `
┬  ┬┬┌─┐┌─┐
└┐┌┘││ ┬│ │
 └┘ ┴└─┘└─┘

Viola-Jones face classifier training tool.
    Version: %s

`

// Version indicates the current build version.
var Version string

var rootCmd = &cobra.Command{
	Use:   "vigo",
	Short: "Viola-Jones face classifier training tool",
}

func main() {
	log.SetFlags(0)

	if Version == "" {
		Version = "alpha"
	}
	rootCmd.Version = Version
	rootCmd.Long = fmt.Sprintf(HelpBanner, Version)
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// fatal prints a decorated error message and ends the run.
func fatal(format string, args ...any) {
	log.Fatalf(utils.DecorateText(format+"\n", utils.ErrorMessage), args...)
}
