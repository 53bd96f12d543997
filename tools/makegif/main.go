package main

import (
	"flag"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/razzie/gifenc/pkg/gifenc"
	"gopkg.in/yaml.v3"
)

// Job describes an offline encoding task. Command-line flags override
// values loaded from the YAML job file.
type Job struct {
	Output  string   `yaml:"output"`
	Width   int      `yaml:"width"`
	Height  int      `yaml:"height"`
	FPS     float64  `yaml:"fps"`
	Quality int      `yaml:"quality"`
	Fast    bool     `yaml:"fast"`
	Repeat  int      `yaml:"repeat"`
	Frames  []string `yaml:"frames"`
}

func main() {
	jobFile := flag.String("c", "", "YAML job file")
	output := flag.String("o", "", "output GIF path")
	fps := flag.Float64("fps", 0, "frames per second")
	quality := flag.Int("quality", 0, "quality 1-100")
	fast := flag.Bool("fast", false, "trade quality for speed")
	repeat := flag.Int("repeat", 0, "-1 no loop, 0 infinite, n>0 extra loops")
	width := flag.Int("w", 0, "output width (0 = first frame's width)")
	height := flag.Int("h", 0, "output height (0 = first frame's height)")
	flag.Parse()

	job := Job{FPS: 10}
	if len(*jobFile) > 0 {
		data, err := os.ReadFile(*jobFile)
		if err == nil {
			err = yaml.Unmarshal(data, &job)
		}
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}
	if len(*output) > 0 {
		job.Output = *output
	}
	if *fps > 0 {
		job.FPS = *fps
	}
	if *quality > 0 {
		job.Quality = *quality
	}
	if *fast {
		job.Fast = true
	}
	if *repeat != 0 {
		job.Repeat = *repeat
	}
	if *width > 0 {
		job.Width = *width
	}
	if *height > 0 {
		job.Height = *height
	}
	job.Frames = append(job.Frames, flag.Args()...)

	if len(job.Frames) == 0 || len(job.Output) == 0 {
		fmt.Printf("Usage: %s [-c job.yaml] -o out.gif [options] [frame images...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(&job); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(job *Job) error {
	first, err := imaging.Open(job.Frames[0])
	if err != nil {
		return err
	}
	if job.Width == 0 {
		job.Width = first.Bounds().Dx()
	}
	if job.Height == 0 {
		job.Height = first.Bounds().Dy()
	}

	enc, err := gifenc.New(gifenc.Settings{
		Width:   job.Width,
		Height:  job.Height,
		Quality: job.Quality,
		Fast:    job.Fast,
		Repeat:  job.Repeat,
	})
	if err != nil {
		return err
	}
	if err := enc.SetFileOutput(job.Output); err != nil {
		return err
	}

	for i, path := range job.Frames {
		var img image.Image
		if i == 0 {
			img = first
		} else if img, err = imaging.Open(path); err != nil {
			return err
		}
		b := img.Bounds()
		if b.Dx() != job.Width || b.Dy() != job.Height {
			img = imaging.Resize(img, job.Width, job.Height, imaging.Lanczos)
		}
		if err := enc.AddFrame(img, float64(i)/job.FPS); err != nil {
			return err
		}
	}
	return enc.Finish()
}
