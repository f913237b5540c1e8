package frames

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"ytframes/internal/model"
)

// Runner is the single-video extraction entry point the scheduler drives.
type Runner interface {
	Extract(ctx context.Context, video model.Video) (*model.FrameResult, error)
}

// ProgressEvent is emitted after every task completion, success or failure.
type ProgressEvent struct {
	// Done is the running count of finished items, resumed ones included.
	Done int
	// Total is the full input size.
	Total int
	// Errors is the running failure count.
	Errors int
	// Title is the just-finished item's title.
	Title string
	// Failed marks this completion as a failure; Reason carries its text.
	Failed bool
	Reason string
}

// Failure records one isolated, classified per-video failure.
type Failure struct {
	Video    model.Video
	Reason   string
	Category Category
}

// Summary aggregates a pipeline run's outcomes.
type Summary struct {
	// RunID correlates log lines for one run.
	RunID string
	// Total is the number of input videos.
	Total int
	// Resumed is how many results were reused from existing frame artifacts.
	Resumed int
	// Results holds successful extractions in input (channel) order.
	Results []*model.FrameResult
	// Failures holds the isolated per-video failures.
	Failures []Failure
	// Tally counts failures by category.
	Tally map[Category]int
}

// Scheduler runs frame extraction for a set of videos over a bounded worker
// pool. It is resumable: videos whose frame artifact already exists are
// counted as successes without re-invoking extraction, so re-running after
// an interruption only processes the residual set.
type Scheduler struct {
	// Runner performs each extraction.
	Runner Runner
	// FrameDir is scanned for resumable artifacts.
	FrameDir string
	// Workers bounds the pool; the effective size is min(Workers, pending).
	Workers int
	// OnProgress, when set, receives an event after every completion.
	OnProgress func(ProgressEvent)
}

type outcome struct {
	video  model.Video
	result *model.FrameResult
	err    error
}

// Run extracts frames for every pending video and returns the aggregated
// summary. A task failure never aborts siblings or the run; the run ends
// once every pending task has reported.
func (s *Scheduler) Run(ctx context.Context, videos []model.Video) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID: uuid.NewString(),
		Total: len(videos),
		Tally: make(map[Category]int),
	}

	// Resume scan: reuse any frame artifact already on disk.
	completed := make(map[string]*model.FrameResult, len(videos))
	var pending []model.Video
	for _, video := range videos {
		framePath := filepath.Join(s.FrameDir, video.ID+".png")
		if info, err := os.Stat(framePath); err == nil && !info.IsDir() {
			completed[video.ID] = &model.FrameResult{
				Video:      video,
				FramePath:  framePath,
				UploadedAt: video.UploadedAt,
			}
			continue
		}
		pending = append(pending, video)
	}
	summary.Resumed = len(completed)
	log.Printf("ytframes: run %s: %d videos, %d resumed, %d pending",
		summary.RunID, len(videos), summary.Resumed, len(pending))

	if len(pending) > 0 {
		workers := s.Workers
		if workers < 1 {
			workers = 1
		}
		if workers > len(pending) {
			workers = len(pending)
		}

		tasks := make(chan model.Video)
		outcomes := make(chan outcome, len(pending))

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for video := range tasks {
					result, err := s.Runner.Extract(ctx, video)
					outcomes <- outcome{video: video, result: result, err: err}
				}
			}()
		}

		go func() {
			defer close(tasks)
			for _, video := range pending {
				select {
				case tasks <- video:
				case <-ctx.Done():
					return
				}
			}
		}()

		done := len(completed)
		collected := 0
		for collected < len(pending) {
			select {
			case out := <-outcomes:
				collected++
				done++
				if out.err != nil {
					failure := Failure{
						Video:    out.video,
						Reason:   out.err.Error(),
						Category: Classify(out.err.Error()),
					}
					summary.Failures = append(summary.Failures, failure)
					summary.Tally[failure.Category]++
					s.emit(ProgressEvent{
						Done: done, Total: len(videos), Errors: len(summary.Failures),
						Title: out.video.Title, Failed: true, Reason: failure.Reason,
					})
				} else {
					completed[out.video.ID] = out.result
					s.emit(ProgressEvent{
						Done: done, Total: len(videos), Errors: len(summary.Failures),
						Title: out.video.Title,
					})
				}
			case <-ctx.Done():
				// Drain whatever the workers still report so none block,
				// then surface the cancellation.
				go func() {
					wg.Wait()
					close(outcomes)
				}()
				for range outcomes {
				}
				return nil, ctx.Err()
			}
		}
		wg.Wait()
	}

	// Deterministic handoff order: input (channel) order, independent of
	// completion order.
	for _, video := range videos {
		if result, ok := completed[video.ID]; ok {
			summary.Results = append(summary.Results, result)
		}
	}

	return summary, nil
}

func (s *Scheduler) emit(event ProgressEvent) {
	if s.OnProgress != nil {
		s.OnProgress(event)
	}
}
