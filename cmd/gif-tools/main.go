// gif-tools clips an animated GIF to a polygon and re-encodes it, optionally
// resizing and fitting the result under a byte budget.
//
// Example:
//
//	gif-tools -polygon "10,10;90,10;50,80" -budget 500000 -output out.gif in.gif
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	giftools "github.com/Simmo-os/gif-tools"
)

var (
	outputFilename = flag.String("output", "", "output filename (required)")
	polygonSpec    = flag.String("polygon", "", `clip polygon as "x,y;x,y;x,y" in source pixels (required)`)
	width          = flag.Int("width", 0, "output width (default: source width)")
	height         = flag.Int("height", 0, "output height (default: source height)")
	budget         = flag.Int("budget", 0, "maximum output size in bytes (0 = unlimited)")
	posterFilename = flag.String("poster", "", "also write a PNG preview of the first frame")
)

// parsePolygon reads a semicolon-separated vertex list. Coordinates may be
// fractional.
func parsePolygon(spec string) (giftools.Polygon, error) {
	var poly giftools.Polygon
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		xy := strings.Split(part, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("vertex %q: want x,y", part)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("vertex %q: %v", part, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("vertex %q: %v", part, err)
		}
		poly = append(poly, giftools.Point{X: x, Y: y})
	}
	return poly, poly.Validate()
}

func fail(format string, args ...interface{}) {
	color.Red(format, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()

	if flag.NArg() != 1 || *outputFilename == "" || *polygonSpec == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -polygon \"x,y;x,y;x,y\" -output out.gif [flags] input.gif\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	poly, err := parsePolygon(*polygonSpec)
	if err != nil {
		fail("invalid polygon: %v", err)
	}

	inputBuf, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fail("failed to read input file: %v", err)
	}

	res, err := giftools.ClipGIF(context.Background(), inputBuf, &giftools.ExportOptions{
		TargetWidth:  *width,
		TargetHeight: *height,
		Polygon:      poly,
		SizeBudget:   *budget,
	})
	if err != nil {
		fail("clip failed: %v", err)
	}

	if err := os.WriteFile(*outputFilename, res.Data, 0o644); err != nil {
		fail("failed to write output file: %v", err)
	}

	switch res.Status {
	case giftools.ExportAccepted:
		color.Green("wrote %s: %dx%d, %d bytes (%d attempt(s))",
			*outputFilename, res.Width, res.Height, len(res.Data), res.Attempts)
	case giftools.ExportBestEffort:
		color.Yellow("wrote %s: %dx%d, %d bytes over budget after %d attempt(s), hit the size floor",
			*outputFilename, res.Width, res.Height, len(res.Data), res.Attempts)
	case giftools.ExportGaveUp:
		color.Yellow("wrote %s: %dx%d, %d bytes over budget after %d attempt(s)",
			*outputFilename, res.Width, res.Height, len(res.Data), res.Attempts)
	}

	if *posterFilename != "" {
		writePoster(inputBuf, poly)
	}
}

func writePoster(inputBuf []byte, poly giftools.Polygon) {
	d, err := giftools.NewDecoder(inputBuf)
	if err != nil {
		fail("poster: %v", err)
	}
	defer d.Close()

	h, err := d.Header()
	if err != nil {
		fail("poster: %v", err)
	}
	frames, err := giftools.ReadFrames(d)
	if err != nil {
		fail("poster: %v", err)
	}

	maxDim := *width
	if *height > maxDim {
		maxDim = *height
	}
	blob, err := giftools.Poster(frames, h.Width(), h.Height(), poly, maxDim)
	if err != nil {
		fail("poster: %v", err)
	}
	if err := os.WriteFile(*posterFilename, blob, 0o644); err != nil {
		fail("failed to write poster file: %v", err)
	}
	color.Green("wrote %s: %d bytes", *posterFilename, len(blob))
}
