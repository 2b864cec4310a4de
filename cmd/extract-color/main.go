// Command extract-color prints the colour each analysis mode extracts from image files.
// Extraction tunables come from the same environment variables and CONFIG_FILE as the daemon.
//
//	extract-color [-bias GOLDEN_RATIO] [-region 100,0,979,1919] frame.png [more.jpg ...]
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/ambient"
	"github.com/scheerer/ambient-video-lights/internal/extract"
	"github.com/scheerer/ambient-video-lights/internal/frames"
	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("extract-color")

var modes = []extract.AnalysisMode{
	extract.PureAverage,
	extract.MostFrequentColor,
	extract.MostFrequentWholeColor,
}

func main() {
	defer logger.Sync()

	config, err := ambient.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to load configuration")
	}

	bias := flag.String("bias", config.BiasMode, "bias mode: NONE, RULE_OF_THIRDS or GOLDEN_RATIO")
	region := flag.String("region", config.Region, "top,left,bottom,right (inclusive), empty for the whole image")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract-color [-bias MODE] [-region t,l,b,r] image...")
		os.Exit(2)
	}

	config.BiasMode = *bias
	config.Region = *region
	analysis, err := config.Analysis()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid analysis settings")
	}
	extractor, err := extract.New(analysis.Options)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid extraction options")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tMODE\tCOLOR\tWEIGHT")

	failed := false
	for _, path := range flag.Args() {
		img, err := frames.Load(path)
		if err != nil {
			logger.With(zap.String("path", path), zap.Error(err)).Error("Failed to load image")
			failed = true
			continue
		}
		grid := extract.FromRGBA(img)

		for _, mode := range modes {
			result, err := extractor.Extract(grid, mode, analysis.Bias, analysis.Region)
			if err != nil {
				logger.With(zap.String("path", path), zap.Stringer("mode", mode), zap.Error(err)).Error("Failed to extract color")
				failed = true
				break
			}
			c := lights.Color{Red: result.Color.R, Green: result.Color.G, Blue: result.Color.B}
			label := c.String()
			if result.NoSignal() {
				label = "no signal"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", path, mode, label, result.Weight)
		}
	}
	w.Flush()

	if failed {
		os.Exit(1)
	}
}
