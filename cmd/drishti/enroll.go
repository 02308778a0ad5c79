package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/yuv"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

var enrollCmd = &cobra.Command{
	Use:   "enroll DIR",
	Short: "Register faces from a directory of photos",
	Long: `Register faces from a directory laid out as DIR/<name>/<photo>.
The largest face in each photo is embedded and every person's photos are
averaged into one gallery entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnroll(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

// person is one subdirectory of the enrolment directory.
type person struct {
	name   string
	images []string
}

// scanEnrollDir lists people and their photos in name order.
func scanEnrollDir(dir string) ([]person, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var people []person
	total := 0
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, 0, err
		}

		p := person{name: e.Name()}
		for _, f := range files {
			if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			p.images = append(p.images, filepath.Join(dir, e.Name(), f.Name()))
		}
		if len(p.images) == 0 {
			continue
		}
		sort.Strings(p.images)
		people = append(people, p)
		total += len(p.images)
	}
	return people, total, nil
}

// largestFace returns the face with the biggest box area.
func largestFace(faces []detector.Face) (detector.Face, bool) {
	best, bestArea := -1, 0
	for i, f := range faces {
		if area := f.Box.Width() * f.Box.Height(); f.Box.Valid() && area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return detector.Face{}, false
	}
	return faces[best], true
}

func runEnroll(ctx context.Context, dir string) error {
	people, total, err := scanEnrollDir(dir)
	if err != nil {
		return err
	}
	if total == 0 {
		return fmt.Errorf("no photos found under %s", dir)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.store.Close()

	det, emb, err := newModels()
	if err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Detector:  det,
		Embedder:  emb,
		Gallery:   svc.gallery,
		Store:     svc.store,
		Logger:    logger,
		Threshold: cfg.Threshold,
		PatchSize: cfg.PatchSize,
	})
	if err != nil {
		det.Close()
		emb.Close()
		return err
	}
	defer a.Stop()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	conv := yuv.NewConverter()
	var report []string
	for _, p := range people {
		var samples []app.Sample
		for _, path := range p.images {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			sample, err := loadSample(ctx, det, conv, path)
			bar.Add(1)
			if err != nil {
				logger.Warn("skipping photo", "path", path, "err", err)
				continue
			}
			samples = append(samples, sample)
		}

		if len(samples) == 0 {
			report = append(report, fmt.Sprintf("%s: no usable photos", p.name))
			continue
		}
		if _, err := a.RegisterSamples(ctx, p.name, samples); err != nil {
			report = append(report, fmt.Sprintf("%s: %v", p.name, err))
			continue
		}
		report = append(report, fmt.Sprintf("%s: registered from %d of %d photos", p.name, len(samples), len(p.images)))
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	for _, line := range report {
		fmt.Println(line)
	}
	return nil
}

// loadSample reads a photo and selects its largest face.
func loadSample(ctx context.Context, det detector.Detector, conv *yuv.Converter, path string) (app.Sample, error) {
	frame, err := capture.ReadImageFile(path)
	if err != nil {
		return app.Sample{}, err
	}

	nv21, err := conv.Convert(frame.Pixels, frame.Width, frame.Height)
	if err != nil {
		return app.Sample{}, err
	}

	faces, err := det.Detect(ctx, detector.Image{NV21: nv21, Width: frame.Width, Height: frame.Height})
	if err != nil {
		return app.Sample{}, err
	}

	face, ok := largestFace(faces)
	if !ok {
		return app.Sample{}, app.ErrNoFaceInBox
	}
	return app.Sample{Frame: frame, Box: face.Box}, nil
}
