package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/esimov/vigo"
	"github.com/esimov/vigo/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// trainOptions holds the command line configuration of a training run.
type trainOptions struct {
	facesDir      string
	backgroundDir string
	out           string

	windowWidth      int
	windowHeight     int
	minFeatureWidth  int
	minFeatureHeight int

	maxDepth   int
	stageFPR   float64
	cascadeFPR float64
	minRounds  int
	maxRounds  int
	percentile float64
	expected   int
	workers    int
	flipFaces  bool
}

var trainOpts trainOptions

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a face classification cascade over labeled training windows",
	Run: func(cmd *cobra.Command, args []string) {
		runTrain(trainOpts)
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainOpts.facesDir, "faces", "f", "", "Directory holding the face windows")
	trainCmd.Flags().StringVarP(&trainOpts.backgroundDir, "background", "b", "", "Directory holding the background windows")
	trainCmd.Flags().StringVarP(&trainOpts.out, "out", "o", "cascade.json", "Destination of the trained cascade")
	trainCmd.Flags().IntVar(&trainOpts.windowWidth, "width", 64, "Training window width")
	trainCmd.Flags().IntVar(&trainOpts.windowHeight, "height", 64, "Training window height")
	trainCmd.Flags().IntVar(&trainOpts.minFeatureWidth, "min-feature-width", 4, "Smallest feature base rectangle width")
	trainCmd.Flags().IntVar(&trainOpts.minFeatureHeight, "min-feature-height", 4, "Smallest feature base rectangle height")
	trainCmd.Flags().IntVar(&trainOpts.maxDepth, "depth", vigo.DefaultMaxDepth, "Maximum number of cascade stages")
	trainCmd.Flags().Float64Var(&trainOpts.stageFPR, "stage-fpr", vigo.DefaultTargetStageFPR, "Per stage false positive rate target (0 disables)")
	trainCmd.Flags().Float64Var(&trainOpts.cascadeFPR, "cascade-fpr", 0, "Cascade wide false positive rate target (0 disables)")
	trainCmd.Flags().IntVar(&trainOpts.minRounds, "min-rounds", vigo.DefaultMinRounds, "Boosting rounds to run before the stage target applies")
	trainCmd.Flags().IntVar(&trainOpts.maxRounds, "max-rounds", 0, "Boosting rounds cap per stage (0 disables)")
	trainCmd.Flags().Float64Var(&trainOpts.percentile, "percentile", vigo.DefaultCalibrationPercentile, "Face vote percentile anchoring the stage decision threshold")
	trainCmd.Flags().IntVar(&trainOpts.expected, "expected", 0, "Reject training sets of any other size (0 disables)")
	trainCmd.Flags().IntVar(&trainOpts.workers, "workers", runtime.NumCPU(), "Concurrent workers of the feature scan")
	trainCmd.Flags().BoolVar(&trainOpts.flipFaces, "flip", false, "Double the face windows with their mirrored twins")

	trainCmd.MarkFlagRequired("faces")
	trainCmd.MarkFlagRequired("background")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(opts trainOptions) {
	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ VIGO", utils.StatusMessage),
		utils.DecorateText("is loading the training windows...", utils.DefaultMessage))
	spinner := utils.NewSpinner(spinnerText, time.Millisecond*200, true)

	// Capture CTRL-C and restore the cursor visibility back.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		spinner.RestoreCursor()
		os.Exit(1)
	}()

	spinner.Start()
	set, err := vigo.LoadTrainingSet(opts.facesDir, opts.backgroundDir, &vigo.LoaderOptions{
		Width:     opts.windowWidth,
		Height:    opts.windowHeight,
		FlipFaces: opts.flipFaces,
		Workers:   opts.workers,
	})
	spinner.StopMsg = fmt.Sprintf("%s %s\n",
		utils.DecorateText("⚡ VIGO", utils.StatusMessage),
		utils.DecorateText("is loading the training windows... ✔", utils.DefaultMessage))
	spinner.Stop()
	if err != nil {
		fatal("Failed to load the training set: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Loaded %d training windows (%d faces, %d backgrounds)\n",
		set.Len(), set.Positives(), set.Negatives())

	trainer, err := vigo.NewTrainer(&vigo.TrainerOptions{
		WindowWidth:           opts.windowWidth,
		WindowHeight:          opts.windowHeight,
		MinFeatureWidth:       opts.minFeatureWidth,
		MinFeatureHeight:      opts.minFeatureHeight,
		MaxDepth:              opts.maxDepth,
		TargetStageFPR:        opts.stageFPR,
		MinRounds:             opts.minRounds,
		MaxRounds:             opts.maxRounds,
		TargetCascadeFPR:      opts.cascadeFPR,
		CalibrationPercentile: opts.percentile,
		ExpectedSamples:       opts.expected,
		Workers:               opts.workers,
		Log:                   os.Stderr,
		Progress:              scanProgress(),
	})
	if err != nil {
		fatal("Invalid training configuration: %v", err)
	}

	now := time.Now()
	casc, report, err := trainer.Train(set)
	if err != nil {
		fatal("Training failed: %v", err)
	}

	out, err := os.Create(opts.out)
	if err != nil {
		fatal("Unable to create the cascade file: %v", err)
	}
	if err := casc.Save(out); err != nil {
		out.Close()
		fatal("Unable to save the cascade: %v", err)
	}
	if err := out.Close(); err != nil {
		fatal("Unable to save the cascade: %v", err)
	}

	fmt.Fprintf(os.Stderr, "\nThe trained cascade has been saved as: %s %s\n",
		utils.DecorateText(filepath.Base(opts.out), utils.SuccessMessage),
		utils.DefaultColor,
	)
	fmt.Fprintf(os.Stderr, "Stages: %d, detection rate: %.4f, false positive rate: %.4f\n",
		report.Stages, report.DetectionRate, report.FalsePositiveRate)
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n",
		utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
}

// scanProgress renders the per round feature scans as a progress bar. Every
// scan announces itself with done == 0, which swaps in a fresh bar. The
// callback fires from the scan workers, so the bar swap needs the lock.
func scanProgress() func(done, total int) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}

	var mu sync.Mutex
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if done == 0 || bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("scanning features"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			return
		}
		bar.Set(done)
	}
}
