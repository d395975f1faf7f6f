package session

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/sampler"
	"github.com/detectoo/detectoo/internal/verdict"
)

// DefaultDelay is the pause between accepting a file and showing its result.
const DefaultDelay = 2 * time.Second

// Analyzer runs the region sampler and the verdict generator for an upload.
// The two are independent: the verdict never looks at the regions.
type Analyzer struct {
	Sampler *sampler.Sampler
	Verdict *verdict.Generator
	Delay   time.Duration
}

// Analyze runs both steps immediately.
func (a *Analyzer) Analyze(u *intake.Upload) (model.AnalysisResult, []model.Region) {
	regions := a.Sampler.Sample(u.Image)
	result := a.Verdict.Generate(u.Name, u.Size)
	return result, regions
}

// Run waits for the configured delay, then analyzes u and tags the outcome
// with gen. It returns ctx.Err() if ctx ends first.
func (a *Analyzer) Run(ctx context.Context, gen uint64, u *intake.Upload) (AnalysisCompleted, error) {
	if a.Delay > 0 {
		t := time.NewTimer(a.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return AnalysisCompleted{}, ctx.Err()
		case <-t.C:
		}
	}

	result, regions := a.Analyze(u)
	return AnalysisCompleted{Generation: gen, Result: result, Regions: regions}, nil
}

// Store is a State shared between goroutines, with a memoized heatmap.
type Store struct {
	mu    sync.Mutex
	state State
	memo  heatmap.Memo
}

// NewStore returns an idle store.
func NewStore(opts heatmap.Options) *Store {
	s := &Store{}
	s.memo.Options = opts
	return s
}

// Dispatch applies a and returns the resulting state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	return s.state
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit dispatches FileSelected for u. If the upload was accepted, the
// analysis runs in the background and done is called with the state after
// its completion is dispatched. applied is false when Reduce dropped the
// completion because a newer upload or a reset superseded it.
func (s *Store) Submit(ctx context.Context, a *Analyzer, u *intake.Upload, done func(st State, applied bool)) State {
	st := s.Dispatch(FileSelected{Upload: u})
	if st.Phase != PhaseLoading || st.Upload != u {
		return st
	}

	gen := st.Generation
	go func() {
		completed, err := a.Run(ctx, gen, u)
		if err != nil {
			return
		}
		next := s.Dispatch(completed)
		if done != nil {
			done(next, next.Phase == PhaseResult && next.Generation == gen)
		}
	}()
	return st
}

// Heatmap returns the heatmap for the current result. The render is cached
// until the image or regions change. ok is false when there is no result.
func (s *Store) Heatmap() (img *image.NRGBA, ok bool) {
	st := s.State()
	if st.Phase != PhaseResult || st.Image() == nil {
		return nil, false
	}
	return s.memo.Get(st.Image(), st.Regions), true
}
