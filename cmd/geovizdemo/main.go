// Command geovizdemo renders a synthetic styled dataset to a PNG.
package main

import (
	"flag"
	"image/png"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/gogpu/geoviz"
	"github.com/gogpu/geoviz/schema"
	"github.com/gogpu/geoviz/style"
)

const styleSource = `color: ramp(linear($speed, 0, 120), sunset)
width: 2 + linear($speed, 0, 120) * 10
strokeColor: rgba(0, 0, 0, 0.6)
strokeWidth: 1`

func main() {
	var (
		width    = flag.Int("width", 800, "image width")
		height   = flag.Int("height", 800, "image height")
		points   = flag.Int("points", 2000, "synthetic feature count")
		output   = flag.String("output", "demo.png", "output file")
		verbose  = flag.Bool("v", false, "log renderer activity")
		duration = flag.Duration("fade", 400*time.Millisecond, "style cross-fade length")
	)
	flag.Parse()

	if *verbose {
		geoviz.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	s := schema.Schema{"speed": schema.Number(0, 120)}
	df, err := syntheticPoints(*points, s)
	if err != nil {
		log.Fatalf("Failed to build dataset: %v", err)
	}
	st, err := style.FromSource(styleSource, s)
	if err != nil {
		log.Fatalf("Failed to parse style: %v", err)
	}
	if err := df.SetStyle(st); err != nil {
		log.Fatalf("Failed to attach style: %v", err)
	}

	r, err := geoviz.NewRenderer(nil, geoviz.RendererConfig{Width: *width, Height: *height})
	if err != nil {
		log.Fatalf("Failed to open renderer: %v", err)
	}
	defer r.Close()

	r.AddDataframe(df)
	if err := drain(r); err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	// Cross-fade the width channel live, then settle again.
	if err := st.BlendToSource(style.Width, "4", s, *duration); err != nil {
		log.Fatalf("Failed to start transition: %v", err)
	}
	if err := drain(r); err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}
	defer f.Close()
	if err := png.Encode(f, r.Image()); err != nil {
		log.Fatalf("Failed to encode: %v", err)
	}

	stats := r.Stats()
	log.Printf("Demo saved to %s (%dx%d, %d frames, last %v)\n",
		*output, *width, *height, stats.FramesDrawn, stats.LastFrame)
}

// drain runs frames until the pipeline goes idle.
func drain(r *geoviz.Renderer) error {
	for r.NeedsFrame() {
		if err := r.Frame(); err != nil {
			return err
		}
	}
	return nil
}

// syntheticPoints scatters features on a spiral with speeds rising
// toward the rim.
func syntheticPoints(n int, s schema.Schema) (*geoviz.Dataframe, error) {
	rng := rand.New(rand.NewSource(42))
	positions := make([]float32, 0, n*2)
	speeds := make([]float32, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		angle := t * 12 * math.Pi
		radius := 0.05 + t*0.85
		jitter := func() float64 { return (rng.Float64() - 0.5) * 0.04 }
		positions = append(positions,
			float32(radius*math.Cos(angle)+jitter()),
			float32(radius*math.Sin(angle)+jitter()))
		speeds = append(speeds, float32(t*120))
	}
	return geoviz.NewPoints(positions, map[string][]float32{"speed": speeds}, s)
}
