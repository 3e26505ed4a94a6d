/*
Package vigo is a Viola-Jones face classifier training library. It grows a
cascade of boosted decision stumps out of labeled face and background windows:
every training window is condensed into an integral image, scored against a
catalog of Haar features, and the stumps splitting the two classes with the
lowest weighted error are boosted into the strong classifiers that make up the
cascade stages.

The package provides a command line interface for training a cascade and for
probing single windows against a trained one. To check the supported commands type:

	$ vigo --help

In case you wish to integrate the API in a self constructed environment here is
a simple example:

	package main

	import (
		"fmt"
		"log"
		"os"

		"github.com/esimov/vigo"
	)

	func main() {
		set, err := vigo.LoadTrainingSet("./faces", "./backgrounds", nil)
		if err != nil {
			log.Fatal(err)
		}

		t, err := vigo.NewTrainer(vigo.DefaultTrainerOptions())
		if err != nil {
			log.Fatal(err)
		}

		cascade, report, err := t.Train(set)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("detection rate: %.4f\n", report.DetectionRate)

		out, err := os.Create("cascade.json")
		if err != nil {
			log.Fatal(err)
		}
		defer out.Close()

		if err := cascade.Save(out); err != nil {
			log.Fatal(err)
		}
	}
*/
package vigo
