package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/esimov/vigo"
	"github.com/esimov/vigo/utils"
	"github.com/spf13/cobra"
)

type classifyOptions struct {
	cascadePath string
	image       string
}

var classifyOpts classifyOptions

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run a trained cascade over a single image",
	Run: func(cmd *cobra.Command, args []string) {
		runClassify(classifyOpts)
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyOpts.cascadePath, "cascade", "c", "cascade.json", "Trained cascade file")
	classifyCmd.Flags().StringVarP(&classifyOpts.image, "in", "i", "", "Image to classify")

	classifyCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(opts classifyOptions) {
	f, err := os.Open(opts.cascadePath)
	if err != nil {
		fatal("Unable to open the cascade file: %v", err)
	}
	defer f.Close()

	casc, err := vigo.LoadCascade(f)
	if err != nil {
		fatal("Unable to load the cascade: %v", err)
	}

	window, err := vigo.LoadWindow(opts.image, casc.Width, casc.Height)
	if err != nil {
		fatal("Unable to read the image: %v", err)
	}

	verdict, err := casc.Classify(window)
	if err != nil {
		fatal("Classification failed: %v", err)
	}

	color := utils.ErrorMessage
	if verdict == vigo.Face {
		color = utils.SuccessMessage
	}
	fmt.Printf("%s: %s%s (%d stages)\n",
		filepath.Base(opts.image),
		utils.DecorateText(verdict.String(), color),
		utils.DefaultColor,
		len(casc.Stages),
	)
}
