package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/waymo-kitti/internal/capture"
	"github.com/banshee-data/waymo-kitti/internal/db"
	"github.com/banshee-data/waymo-kitti/internal/fsutil"
	"github.com/banshee-data/waymo-kitti/internal/kitti"
	"github.com/banshee-data/waymo-kitti/internal/monitoring"
	"github.com/banshee-data/waymo-kitti/internal/waymo"
)

// Recorder receives the outcome of every sampled capture. *db.DB implements it.
type Recorder interface {
	RecordCapture(ctx context.Context, rec db.CaptureRecord) error
}

// Runner converts segment files into a dataset. Captures are decoded and
// converted by Workers goroutines; output indexes are assigned in source
// order, so a run is reproducible regardless of worker count.
type Runner struct {
	FS        fsutil.FileSystem
	Files     []string
	Writer    *kitti.Writer
	Converter *Converter

	// Keyframe keeps frames whose running frame number across all files is
	// a multiple of it.
	Keyframe   int
	StartIndex int
	Workers    int
	// AcceptLocation filters captures by location; nil accepts all.
	AcceptLocation func(string) bool

	// Recorder and RunID are optional.
	Recorder Recorder
	RunID    string
}

// Stats summarises a run.
type Stats struct {
	Frames   int // records read
	Sampled  int // keyframes
	Filtered int // keyframes rejected by location
	Written  int
	Skipped  int // no usable labels
	Failed   int
	// NextIndex is the index the next converted capture would get.
	NextIndex int
}

type job struct {
	seq      int
	file     string
	frameNum int
	data     []byte
}

type result struct {
	seq             int
	file            string
	frameNum        int
	contextName     string
	timestampMicros int64
	location        string
	frame           *kitti.Frame
	err             error
}

// Run converts every file. Capture-level failures are logged, recorded and
// counted; read, write and recorder failures stop the run.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	stats := Stats{NextIndex: r.StartIndex}
	workers := max(r.Workers, 1)

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job)
	results := make(chan result)
	// bounds captures held in memory while an earlier one is still converting
	slots := make(chan struct{}, 2*workers)

	g.Go(func() error {
		defer close(jobs)
		return r.produce(ctx, jobs, slots, &stats)
	})

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				select {
				case results <- r.convert(j):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	g.Go(func() error {
		return r.collect(ctx, results, slots, &stats)
	})

	err := g.Wait()
	monitoring.Logf("conversion finished: %d frames read, %d sampled, %d filtered, %d written, %d skipped, %d failed",
		stats.Frames, stats.Sampled, stats.Filtered, stats.Written, stats.Skipped, stats.Failed)
	return stats, err
}

func (r *Runner) produce(ctx context.Context, jobs chan<- job, slots chan<- struct{}, stats *Stats) error {
	keyframe := max(r.Keyframe, 1)
	seq := 0
	for _, name := range r.Files {
		f, err := r.FS.Open(name)
		if err != nil {
			return err
		}
		rd := waymo.NewReader(f)
		for {
			data, err := rd.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return multierr.Combine(fmt.Errorf("%s: %w", name, err), f.Close())
			}
			frameNum := stats.Frames
			stats.Frames++
			if frameNum%keyframe != 0 {
				continue
			}
			stats.Sampled++

			if r.AcceptLocation != nil {
				// undecodable frames go through and fail in the worker
				if s, err := waymo.DecodeSummary(data); err == nil && !r.AcceptLocation(s.Location) {
					stats.Filtered++
					continue
				}
			}

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return multierr.Combine(ctx.Err(), f.Close())
			}
			select {
			case jobs <- job{seq: seq, file: name, frameNum: frameNum, data: data}:
			case <-ctx.Done():
				return multierr.Combine(ctx.Err(), f.Close())
			}
			seq++
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("read %d records from %s", rd.Records(), name)
	}
	return nil
}

func (r *Runner) convert(j job) result {
	res := result{seq: j.seq, file: j.file, frameNum: j.frameNum}
	opts := waymo.DecodeOptions{SkipImages: !r.Converter.WriteImages}
	for _, ret := range r.Converter.ReturnIndices {
		opts.Returns = max(opts.Returns, ret+1)
	}

	c, err := waymo.DecodeFrame(j.data, opts)
	if err != nil {
		s, _ := waymo.DecodeSummary(j.data)
		res.contextName, res.timestampMicros, res.location = s.ContextName, s.TimestampMicros, s.Location
		res.err = &capture.CaptureError{
			ContextName:     s.ContextName,
			TimestampMicros: s.TimestampMicros,
			Stage:           capture.StageDecode,
			Err:             err,
		}
		return res
	}
	res.contextName, res.timestampMicros, res.location = c.ContextName, c.TimestampMicros, c.Location
	res.frame, res.err = r.Converter.Process(c)
	return res
}

func (r *Runner) collect(ctx context.Context, results <-chan result, slots <-chan struct{}, stats *Stats) error {
	pending := make(map[int]result)
	next := 0
	for res := range results {
		pending[res.seq] = res
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			<-slots
			if err := r.finish(ctx, cur, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, res result, stats *Stats) error {
	rec := db.CaptureRecord{
		RunID:           r.RunID,
		SourceFile:      res.file,
		FrameNumber:     res.frameNum,
		ContextName:     res.contextName,
		TimestampMicros: res.timestampMicros,
		Location:        res.location,
	}

	switch {
	case errors.Is(res.err, ErrNoUsableLabels):
		stats.Skipped++
		rec.Status = db.CaptureSkipped
		monitoring.CaptureLogf(res.contextName, res.timestampMicros, "skipped: %v", res.err)
	case res.err != nil:
		stats.Failed++
		rec.Status = db.CaptureFailed
		rec.Error = res.err.Error()
		monitoring.Logf("%v", res.err)
	default:
		index := stats.NextIndex
		if _, err := r.Writer.WriteCapture(index, res.frame); err != nil {
			return &capture.CaptureError{
				ContextName:     res.contextName,
				TimestampMicros: res.timestampMicros,
				Stage:           capture.StageWrite,
				Err:             err,
			}
		}
		stats.NextIndex++
		stats.Written++
		rec.Status = db.CaptureWritten
		rec.OutputIndex = &index
		rec.OutputName = r.Writer.Name(index)
		rec.NumPoints = res.frame.Points.Len()
		rec.NumLabels = len(res.frame.LabelsAll)
		monitoring.CaptureLogf(res.contextName, res.timestampMicros, "wrote %s: %d points, %d labels",
			rec.OutputName, rec.NumPoints, rec.NumLabels)
	}

	if r.Recorder == nil {
		return nil
	}
	return r.Recorder.RecordCapture(ctx, rec)
}
