// Package dataloader batches samples from a partitioned image dataset for
// training loops: per-epoch index shuffling, a parallel sample-loading
// pool, a shared decoded-image cache and gomlx-style batch yielding.
package dataloader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/digitake/thyroidset/dataset"
	"github.com/digitake/thyroidset/transform"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultBatchSize = 32
	DefaultCacheSize = 512
)

// Dataset is the slice of the dataset API the loader needs. Implemented by
// *dataset.PartitionDataset.
type Dataset interface {
	Len() int
	GetItem(index int) (*dataset.Sample, error)
}

// Config holds configuration for a Loader.
type Config struct {
	// BatchSize is the number of samples per batch. Zero means
	// DefaultBatchSize.
	BatchSize int

	// Shuffle draws a fresh index permutation every epoch.
	Shuffle bool

	// NumWorkers is the number of goroutines loading a batch's samples.
	// Values below 2 load synchronously.
	NumWorkers int

	// CacheSize bounds the shared decoded-image cache built by NewPair.
	CacheSize int

	// Seed fixes the shuffle order; zero seeds from the clock.
	Seed int64

	// Name is reported by the loader's gomlx Name method.
	Name string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Validate rejects negative configuration values. Zero values mean "use the
// default".
func (c Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("dataloader: negative batch size %d", c.BatchSize)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("dataloader: negative worker count %d", c.NumWorkers)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("dataloader: negative cache size %d", c.CacheSize)
	}
	return nil
}

// Loader iterates a dataset in batches. All methods are safe for
// concurrent use; concurrent Next calls serialize on the loader's lock
// while each batch's samples load through the worker pool.
type Loader struct {
	name    string
	dataset Dataset
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	indices  []int
	position int
	epoch    int
}

// Batch is one iteration step: the batch's images stacked into a gomlx
// tensor of shape [N, C, H, W], int32 class labels of shape [N], and the
// per-sample source metadata in batch order.
type Batch struct {
	Images *tensors.Tensor
	Labels *tensors.Tensor
	Meta   []dataset.SampleMeta
	Size   int
}

// New creates a loader over ds. The first epoch's permutation is drawn
// immediately when cfg.Shuffle is set.
func New(ds Dataset, cfg Config) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("dataloader: nil dataset")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Name == "" {
		cfg.Name = "thyroidset"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	l := &Loader{
		name:    cfg.Name,
		dataset: ds,
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewSource(seed)),
		indices: make([]int, ds.Len()),
	}
	for i := range l.indices {
		l.indices[i] = i
	}
	if cfg.Shuffle {
		l.shuffle()
	}
	return l, nil
}

// NewPair builds train and validation loaders that share one decoded-image
// cache, installing the cache on both datasets. The validation loader
// never shuffles.
func NewPair(train, val *dataset.PartitionDataset, cfg Config) (trainLoader, valLoader *Loader, cache *ImageCache, err error) {
	cache = NewImageCache(cfg.CacheSize)
	train.SetDecodeCache(cache)
	val.SetDecodeCache(cache)

	trainCfg := cfg
	trainCfg.Name = pairName(cfg.Name, "train")
	trainLoader, err = New(train, trainCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	valCfg := cfg
	valCfg.Name = pairName(cfg.Name, "val")
	valCfg.Shuffle = false
	valLoader, err = New(val, valCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return trainLoader, valLoader, cache, nil
}

func pairName(base, suffix string) string {
	if base == "" {
		base = "thyroidset"
	}
	return base + "/" + suffix
}

// shuffle permutes the index order. Callers hold the lock.
func (l *Loader) shuffle() {
	l.rng.Shuffle(len(l.indices), func(i, j int) {
		l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
	})
}

// Len returns the number of samples iterated per epoch.
func (l *Loader) Len() int {
	return len(l.indices)
}

// Batches returns the number of batches per epoch.
func (l *Loader) Batches() int {
	if len(l.indices) == 0 {
		return 0
	}
	return (len(l.indices) + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Progress returns the position within the current epoch.
func (l *Loader) Progress() (current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position, len(l.indices)
}

// Epoch returns how many times the loader has been reset.
func (l *Loader) Epoch() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Reset rewinds the loader to the start of a new epoch, reshuffling when
// configured.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.position = 0
	l.epoch++
	if l.cfg.Shuffle {
		l.shuffle()
	}
	l.logger.Debug("loader reset", "name", l.name, "epoch", l.epoch)
}

// Next returns the next batch, or (nil, nil) once the epoch is exhausted.
// The final batch of an epoch may be smaller than the configured size. A
// failing sample load fails the whole batch and leaves the position
// unchanged, so the error surfaces again on retry.
func (l *Loader) Next() (*Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := len(l.indices) - l.position
	if remaining <= 0 {
		return nil, nil
	}
	n := l.cfg.BatchSize
	if remaining < n {
		n = remaining
	}

	samples, err := l.loadSamples(l.indices[l.position : l.position+n])
	if err != nil {
		return nil, err
	}
	batch, err := newBatch(samples)
	if err != nil {
		return nil, err
	}
	l.position += n
	return batch, nil
}

// loadSamples reads the given dataset indices, preserving their order in
// the returned slice. With NumWorkers above 1 the reads go through a
// worker pool.
func (l *Loader) loadSamples(indices []int) ([]*dataset.Sample, error) {
	samples := make([]*dataset.Sample, len(indices))

	workers := l.cfg.NumWorkers
	if workers > len(indices) {
		workers = len(indices)
	}
	if workers <= 1 {
		for i, idx := range indices {
			s, err := l.dataset.GetItem(idx)
			if err != nil {
				return nil, err
			}
			samples[i] = s
		}
		return samples, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				s, err := l.dataset.GetItem(indices[pos])
				if err != nil {
					once.Do(func() { firstErr = err })
					continue
				}
				samples[pos] = s
			}
		}()
	}
	for pos := range indices {
		jobs <- pos
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return samples, nil
}

// newBatch stacks samples into batch tensors. All samples must share one
// tensor shape.
func newBatch(samples []*dataset.Sample) (*Batch, error) {
	n := len(samples)
	images := make([][][][]float32, n)
	labels := make([]int32, n)
	meta := make([]dataset.SampleMeta, n)

	c0, h0, w0 := samples[0].Image.Dims()
	for i, s := range samples {
		c, h, w := s.Image.Dims()
		if c != c0 || h != h0 || w != w0 {
			return nil, fmt.Errorf("dataloader: sample %d has shape [%d %d %d], batch expects [%d %d %d]",
				i, c, h, w, c0, h0, w0)
		}
		images[i] = chwSlices(s.Image)
		labels[i] = int32(s.ClassIndex)
		meta[i] = s.Meta
	}

	return &Batch{
		Images: tensors.FromAnyValue(images),
		Labels: tensors.FromAnyValue(labels),
		Meta:   meta,
		Size:   n,
	}, nil
}

// chwSlices views the tensor's flat buffer as nested [C][H][W] slices for
// the gomlx conversion.
func chwSlices(t *transform.ImageTensor) [][][]float32 {
	c, h, w := t.Dims()
	plane := h * w
	chw := make([][][]float32, c)
	for ch := 0; ch < c; ch++ {
		rows := make([][]float32, h)
		base := ch * plane
		for y := 0; y < h; y++ {
			start := base + y*w
			rows[y] = t.Data[start : start+w]
		}
		chw[ch] = rows
	}
	return chw
}

// Name reports the loader's name, following the gomlx dataset convention.
func (l *Loader) Name() string {
	return l.name
}

// Yield returns the next batch as gomlx tensor slices and io.EOF at epoch
// end, following the gomlx dataset convention. The spec result is the
// loader itself.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	if batch == nil {
		return nil, nil, nil, io.EOF
	}
	return l, []*tensors.Tensor{batch.Images}, []*tensors.Tensor{batch.Labels}, nil
}

// Restart rewinds the loader for another epoch, satisfying the gomlx
// dataset interface.
func (l *Loader) Restart() error {
	l.Reset()
	return nil
}
