package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/cbegin/bmschart-go"
	"github.com/cbegin/bmschart-go/internal/config"
)

type result struct {
	path    string
	size    int64
	chart   *bmschart.Chart
	elapsed time.Duration
	err     error
}

func main() {
	var (
		configPath = flag.String("config", "bmsinfo.ini", "ini file with [decoder] and [preview] sections")
		asJSON     = flag.Bool("json", false, "print one JSON object per chart")
		midiOut    = flag.String("midi", "", "write the first chart as a MIDI file")
		wavOut     = flag.String("wav", "", "render the first chart as a click-track WAV file")
		play       = flag.Bool("play", false, "preview the first chart on the audio device")
		background = flag.Bool("bg", false, "include background keysounds in previews")
		randomSel  = flag.String("random", "", "comma-separated #RANDOM values to replay, e.g. 1,2")
		workers    = flag.Int("j", 0, "concurrent decodes (0 = config value or CPU count)")
		verbose    = flag.Bool("v", false, "log decode timing and anomalies")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: bmsinfo [flags] chart...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	logger := log.New(os.Stderr, "bmsinfo: ", 0)
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	selections, err := parseSelections(*randomSel)
	if err != nil {
		logger.Fatal(err)
	}
	opts := []bmschart.Option{bmschart.WithConfig(cfg.Decoder)}
	if len(selections) > 0 {
		opts = append(opts, bmschart.WithRandomSelections(selections...))
	}

	n := *workers
	if n <= 0 {
		n = cfg.Preview.Workers
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	results := decodeAll(flag.Args(), n, opts)

	var first *bmschart.Chart
	failed := 0
	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if r.err != nil {
			logger.Printf("%s: %v", r.path, r.err)
			failed++
			continue
		}
		if first == nil {
			first = r.chart
		}
		if *verbose {
			logger.Printf("%s: decoded in %s, %d warnings %+v", r.path, r.elapsed, r.chart.Warnings.Total(), r.chart.Warnings)
		}
		s := newSummary(r)
		if *asJSON {
			if err := enc.Encode(s); err != nil {
				logger.Fatal(err)
			}
			continue
		}
		fmt.Print(s.text())
	}

	if first != nil {
		if *midiOut != "" {
			if err := writeMIDI(*midiOut, first); err != nil {
				logger.Fatal(err)
			}
		}
		if *wavOut != "" {
			if err := writeWAV(*wavOut, first, cfg.Preview, *background); err != nil {
				logger.Fatal(err)
			}
		}
		if *play {
			if err := preview(first, cfg.Preview, *background, *verbose, logger); err != nil {
				logger.Fatal(err)
			}
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// decodeAll decodes paths with at most workers in flight. Results keep the
// order of paths.
func decodeAll(paths []string, workers int, opts []bmschart.Option) []result {
	results := make([]result, len(paths))
	wg := sizedwaitgroup.New(workers)
	for i, path := range paths {
		wg.Add()
		go func(i int, path string) {
			defer wg.Done()
			results[i] = decodeOne(path, opts)
		}(i, path)
	}
	wg.Wait()
	return results
}

func decodeOne(path string, opts []bmschart.Option) result {
	r := result{path: path}
	if fi, err := os.Stat(path); err == nil {
		r.size = fi.Size()
	}
	start := time.Now()
	r.chart, r.err = bmschart.DecodeFile(path, opts...)
	r.elapsed = time.Since(start)
	return r
}

func writeMIDI(path string, c *bmschart.Chart) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmschart.WriteMIDI(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWAV(path string, c *bmschart.Chart, p config.Preview, background bool) error {
	var samples []float32
	if background {
		samples = bmschart.RenderClickTrackWithBackground(c, p.SampleRate, p.Gain)
	} else {
		samples = bmschart.RenderClickTrack(c, p.SampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmschart.WriteWAV(f, samples, p.SampleRate, 2); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func preview(c *bmschart.Chart, p config.Preview, background, verbose bool, logger *log.Logger) error {
	pl, err := bmschart.NewPlayer(p.SampleRate,
		bmschart.WithLeadIn(time.Duration(p.LeadInMs)*time.Millisecond),
		bmschart.WithBackground(background),
	)
	if err != nil {
		return err
	}
	pl.SetMasterVolume(p.Gain)
	ch := pl.Watch()
	if err := pl.Play(c); err != nil {
		return err
	}
loop:
	for event := range ch {
		switch event.Kind {
		case bmschart.EventPlaybackEnded:
			fmt.Println("playback completed")
			break loop
		case bmschart.EventNote:
			if verbose {
				logger.Printf("note lane %d at %s", event.Lane, formatDuration(time.Duration(event.TimeUs)*time.Microsecond))
			}
		}
	}
	pl.Wait()
	return nil
}
