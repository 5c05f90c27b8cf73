package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/alec-rabold/rangezip/pkg/reader"
)

var progressWriter io.Writer = os.Stderr

func newProgressBar(e reader.Entry) *progressbar.ProgressBar {
	// DefaultBytes with a longer throttle to reduce flickering.
	return progressbar.NewOptions64(int64(e.UncompressedSize),
		progressbar.OptionSetDescription(e.Name),
		progressbar.OptionSetWriter(progressWriter),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(progressWriter, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
