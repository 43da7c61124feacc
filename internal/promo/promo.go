// Package promo extracts valid promo codes from partner dumps.
//
// Market-connect partners each deliver a gzip file with one candidate code
// per line. A code is valid when at least two different dumps contain it.
// The dumps are too large to hold in memory, so the work is done in two
// streaming passes: the first builds a bloom filter per file, the second
// re-reads every file and keeps only codes that some other file's filter
// may contain.
package promo

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math/bits"
	"os"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tunes the filters and code validation.
type Options struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate is the target bloom filter error rate.
	FalsePositiveRate float64
	// MinLen and MaxLen bound accepted code length; other lines are ignored.
	MinLen int
	MaxLen int
	// ProgressEvery logs progress after this many codes per file. Zero disables it.
	ProgressEvery uint64
	Logger        *zap.Logger
}

// DefaultOptions fit partner dumps of roughly a hundred million codes.
func DefaultOptions() Options {
	return Options{
		Capacity:          120_000_000,
		FalsePositiveRate: 0.001,
		MinLen:            8,
		MaxLen:            10,
		ProgressEvery:     10_000_000,
		Logger:            zap.NewNop(),
	}
}

func (o Options) valid(code string) bool {
	return len(code) >= o.MinLen && len(code) <= o.MaxLen
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// BuildFilters builds one bloom filter per file, reading files concurrently.
// filters[i] describes files[i].
func BuildFilters(ctx context.Context, files []string, opts Options) ([]*bloom.BloomFilter, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("too many files: %d", len(files))
	}
	lg := opts.logger()
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(opts.Capacity, opts.FalsePositiveRate)
			var n uint64
			err := scanFile(ctx, path, func(code string) {
				if !opts.valid(code) {
					return
				}
				f.AddString(code)
				n++
				if opts.ProgressEvery > 0 && n%opts.ProgressEvery == 0 {
					lg.Info("Filter progress", zap.String("file", path), zap.Uint64("codes", n))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			lg.Info("Filter built", zap.String("file", path), zap.Uint64("codes", n))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// SharedCodes returns, sorted, the codes present in at least two files.
// filters must come from BuildFilters over the same files.
func SharedCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, opts Options) ([]string, error) {
	if len(files) != len(filters) {
		return nil, errors.Errorf("%d files but %d filters", len(files), len(filters))
	}
	lg := opts.logger()

	// seen[i] maps candidate codes of files[i] to that file's bit.
	seen := make([]map[string]uint, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			bit := uint(1) << i
			err := scanFile(ctx, path, func(code string) {
				if !opts.valid(code) {
					return
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= bit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			lg.Info("Candidates collected", zap.String("file", path), zap.Int("candidates", len(candidates)))
			seen[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A bloom false positive only sets the bit of the file the code came
	// from, so the union is exact.
	merged := make(map[string]uint)
	for _, candidates := range seen {
		for code, bit := range candidates {
			merged[code] |= bit
		}
	}
	var shared []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			shared = append(shared, code)
		}
	}
	slices.Sort(shared)
	return shared, nil
}

// maxLineBytes bounds a dump line. Longer lines cannot hold a valid code
// and are skipped.
const maxLineBytes = 64 << 10

// scanFile calls fn for every line of the gzip file at path, without the
// line terminator.
func scanFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	r := bufio.NewReaderSize(gz, maxLineBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.ReadSlice('\n')
			}
			line = nil
		}
		if len(line) > 0 {
			line = bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))
			fn(string(line))
		}
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return errors.Wrap(err, "read")
		}
	}
}
