// Package session holds the upload-to-result state machine.
//
// Reduce is the transition table. Front ends keep a State, feed it Actions
// and render whatever comes back.
package session

import (
	"image"

	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/model"
)

// User-facing error messages.
const (
	ErrNotImage = "Please upload an image file"
	ErrDecode   = "Unable to decode image"
)

// Phase is the coarse state of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseResult
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseResult:
		return "result"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is everything a front end renders.
type State struct {
	Phase Phase

	// Generation increases on every accepted upload and every reset.
	// Completions carrying an older generation are dropped.
	Generation uint64

	Upload      *intake.Upload
	Result      *model.AnalysisResult
	Regions     []model.Region
	History     []model.AnalysisResult
	Err         string
	ShowHeatmap bool
}

// Image returns the loaded image, or nil.
func (s State) Image() image.Image {
	if s.Upload == nil {
		return nil
	}
	return s.Upload.Image
}

// Action is an input to Reduce.
type Action interface {
	isAction()
}

// FileSelected is dispatched when the user picks a file.
type FileSelected struct {
	Upload *intake.Upload
}

// AnalysisCompleted delivers the outcome of a delayed analysis.
type AnalysisCompleted struct {
	Generation uint64
	Result     model.AnalysisResult
	Regions    []model.Region
}

// Reset returns the session to Idle.
type Reset struct{}

// HeatmapToggled flips heatmap visibility while a result is shown.
type HeatmapToggled struct{}

func (FileSelected) isAction()      {}
func (AnalysisCompleted) isAction() {}
func (Reset) isAction()             {}
func (HeatmapToggled) isAction()    {}

// Reduce applies a to s and returns the next state. s is not modified.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case FileSelected:
		return selectFile(s, a.Upload)

	case AnalysisCompleted:
		// A rejected file picked while loading moves the phase to Error but
		// keeps the generation, so the pending analysis still lands.
		if a.Generation != s.Generation || s.Upload == nil || s.Result != nil {
			return s
		}
		result := a.Result
		s.Phase = PhaseResult
		s.Err = ""
		s.Result = &result
		s.Regions = a.Regions
		s.History = model.PushHistory(s.History, result)
		return s

	case Reset:
		s.Phase = PhaseIdle
		s.Generation++
		s.Upload = nil
		s.Result = nil
		s.Regions = nil
		s.Err = ""
		s.ShowHeatmap = false
		return s

	case HeatmapToggled:
		if s.Phase != PhaseResult {
			return s
		}
		s.ShowHeatmap = !s.ShowHeatmap
		return s
	}
	return s
}

func selectFile(s State, u *intake.Upload) State {
	if u == nil || !u.IsImage() {
		s.Phase = PhaseError
		s.Err = ErrNotImage
		return s
	}
	if u.Image == nil {
		s.Phase = PhaseError
		s.Err = ErrDecode
		return s
	}

	s.Phase = PhaseLoading
	s.Generation++
	s.Upload = u
	s.Result = nil
	s.Regions = nil
	s.Err = ""
	s.ShowHeatmap = false
	return s
}
