/*
Package emoteline adds a vector outline around the subject of an animation and
squeezes the result under the size limits of chat platforms.

An animation flows through the following stages:

	pad -> silhouette -> trace -> render -> composite -> resample -> encode

Every frame is padded with a transparent margin, thresholded into a binary
silhouette and traced into vector paths. The stroked paths are drawn beneath
the original artwork at full resolution, so the outline never drifts from the
subject. The result is then resampled to the target size and encoded as a GIF,
degrading colors and frames step by step until the byte ceiling is met, or
written losslessly as APNG.

The command line tool lives in cmd/emoteline:

	$ emoteline --help

The API can be used directly as well:

	package main

	import (
		"log"
		"os"

		"github.com/emoteline/emoteline"
	)

	func main() {
		opts := emoteline.DefaultOptions()
		emoteline.Presets["discord"].Apply(&opts)

		in, _ := os.Open("tail.png")
		defer in.Close()
		out, _ := os.Create("tail.gif")
		defer out.Close()

		if _, err := emoteline.NewPipeline(opts).Process(in, out); err != nil {
			log.Fatalf("error converting the emote: %v", err)
		}
	}
*/
package emoteline
