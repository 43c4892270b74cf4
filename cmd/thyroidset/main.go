// Command thyroidset inspects a thyroid ultrasound marker datasource: it
// builds the train/validation split, loads a first batch through each
// pipeline, and can render a class distribution chart or write transformed
// sample previews to disk.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/digitake/thyroidset/dataloader"
	"github.com/digitake/thyroidset/dataset"
	"github.com/digitake/thyroidset/transform"
)

type options struct {
	configPath string
	root       string
	phase      string
	size       int
	valSize    int
	seed       int64
	batchSize  int
	workers    int
	distPath   string
	previewDir string
	previewN   int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML manifest describing the datasource (flags override its values)")
	flag.StringVar(&opts.root, "root", "", "datasource root directory")
	flag.StringVar(&opts.phase, "phase", "train", "pipeline phase to sample: train, val or test")
	flag.IntVar(&opts.size, "size", dataset.DefaultTargetSize, "output edge length in pixels")
	flag.IntVar(&opts.valSize, "val-size", -1, "validation images reserved per class (-1 keeps the manifest value)")
	flag.Int64Var(&opts.seed, "seed", 0, "augmentation and shuffle seed (0 draws one from the clock)")
	flag.IntVar(&opts.batchSize, "batch", dataloader.DefaultBatchSize, "loader batch size")
	flag.IntVar(&opts.workers, "workers", 0, "concurrent sample loaders per batch (0 loads sequentially)")
	flag.StringVar(&opts.distPath, "dist", "", "write a class distribution chart to this PNG path")
	flag.StringVar(&opts.previewDir, "preview", "", "write transformed sample previews into this directory")
	flag.IntVar(&opts.previewN, "preview-n", 8, "number of preview samples to write")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("thyroidset failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	phase, err := transform.ParsePhase(opts.phase)
	if err != nil {
		return err
	}

	src := dataset.DefaultThyroidSource()
	if opts.configPath != "" {
		src, err = dataset.LoadSourceConfig(opts.configPath)
		if err != nil {
			return err
		}
	}
	if opts.root != "" {
		src.Root = opts.root
	}
	if opts.valSize >= 0 {
		src.ValSize = opts.valSize
	}

	train, val, err := dataset.BuildTrainValidation(src, logger)
	if err != nil {
		return err
	}
	summary := dataset.Summarize(train, val)
	fmt.Print(summary.String())

	target := transform.Square(opts.size)
	trainDS, err := dataset.New(dataset.Config{
		Phase:      transform.PhaseTrain,
		Target:     target,
		Seed:       opts.seed,
		ClassPaths: train,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	valDS, err := dataset.New(dataset.Config{
		Phase:      transform.PhaseVal,
		Target:     target,
		ClassPaths: val,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	trainLoader, valLoader, cache, err := dataloader.NewPair(trainDS, valDS, dataloader.Config{
		BatchSize:  opts.batchSize,
		Shuffle:    true,
		NumWorkers: opts.workers,
		Seed:       opts.seed,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	loader, ds := trainLoader, trainDS
	if phase != transform.PhaseTrain {
		loader, ds = valLoader, valDS
	}

	batch, err := loader.Next()
	if err != nil {
		return fmt.Errorf("failed to load first batch: %w", err)
	}
	if batch != nil {
		logger.Info("loaded first batch",
			"loader", loader.Name(),
			"size", batch.Size,
			"batches", loader.Batches(),
			"edge", opts.size,
		)
	}
	logger.Info("decode cache", "stats", cache.Stats().String())

	if opts.distPath != "" {
		if err := writeDistribution(opts.distPath, summary); err != nil {
			return fmt.Errorf("failed to write distribution chart: %w", err)
		}
		logger.Info("wrote class distribution chart", "path", opts.distPath)
	}
	if opts.previewDir != "" {
		if err := writePreviews(opts.previewDir, ds, opts.previewN); err != nil {
			return err
		}
		logger.Info("wrote sample previews", "dir", opts.previewDir, "phase", phase)
	}
	return nil
}

// writeDistribution renders grouped train/validation bars, one group per
// class.
func writeDistribution(path string, summary dataset.SplitSummary) error {
	trainVals := make(plotter.Values, len(summary.Classes))
	valVals := make(plotter.Values, len(summary.Classes))
	labels := make([]string, len(summary.Classes))
	for i, c := range summary.Classes {
		labels[i] = c.Label
		trainVals[i] = float64(c.Train)
		valVals[i] = float64(c.Val)
	}

	p := plot.New()
	p.Title.Text = "Thyroid marker class distribution"
	p.Y.Label.Text = "images"

	w := vg.Points(24)
	trainBars, err := plotter.NewBarChart(trainVals, w)
	if err != nil {
		return err
	}
	trainBars.Color = color.RGBA{R: 64, G: 112, B: 180, A: 255}
	trainBars.Offset = -w / 2

	valBars, err := plotter.NewBarChart(valVals, w)
	if err != nil {
		return err
	}
	valBars.Color = color.RGBA{R: 214, G: 126, B: 44, A: 255}
	valBars.Offset = w / 2

	p.Add(trainBars, valBars)
	p.Legend.Add("train", trainBars)
	p.Legend.Add("val", valBars)
	p.Legend.Top = true
	p.NominalX(labels...)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return p.Save(5*vg.Inch, 4*vg.Inch, path)
}

// writePreviews runs the first n samples through the dataset's pipeline and
// saves the de-normalized results as PNG files.
func writePreviews(dir string, ds *dataset.PartitionDataset, n int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if n > ds.Len() {
		n = ds.Len()
	}
	mean, std := ds.Pipeline().Normalization()
	for i := 0; i < n; i++ {
		sample, err := ds.GetItem(i)
		if err != nil {
			return fmt.Errorf("failed to load preview sample %d: %w", i, err)
		}
		img := sample.Image.ToImage(mean, std)
		name := fmt.Sprintf("%s_%03d.png", sample.Meta.Label, sample.Meta.InClassIndex)
		if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to save preview %s: %w", name, err)
		}
	}
	return nil
}
