// Package model defines the core data types shared across detectoo.
package model

import "image"

// HistoryLimit is the maximum number of results kept in a session history.
const HistoryLimit = 10

// Verdict labels shown to the user.
const (
	VerdictAI   = "🤖 AI GENERATED"
	VerdictReal = "✅ REAL IMAGE"
)

// Region is a rectangular tile of the source image with its label.
type Region struct {
	ID         int  `json:"id"`
	X          int  `json:"x"`
	Y          int  `json:"y"`
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	IsAI       bool `json:"is_ai"`
	Confidence int  `json:"confidence"` // 0-100
}

// Rect returns the region's bounds in image coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Label returns "ai" or "real".
func (r Region) Label() string {
	if r.IsAI {
		return "ai"
	}
	return "real"
}

// Metrics are the detailed per-image figures, pre-formatted with one decimal.
type Metrics struct {
	FrequencyEntropy string `json:"frequency_entropy"`
	ColorVariance    string `json:"color_variance"`
	EdgeConsistency  string `json:"edge_consistency"`
	NoiseLevel       string `json:"noise_level"`
}

// AnalysisResult is the overall verdict for one uploaded file.
type AnalysisResult struct {
	IsAI           bool     `json:"is_ai"`
	Confidence     int      `json:"confidence"`
	FileName       string   `json:"file_name"`
	FileSizeKB     int      `json:"file_size_kb"`
	ProcessingTime string   `json:"processing_time"`
	Verdict        string   `json:"verdict"`
	Methods        []string `json:"methods,omitempty"`
	Metrics        Metrics  `json:"metrics"`
}

// Headline returns the long-form verdict sentence.
func (r AnalysisResult) Headline() string {
	if r.IsAI {
		return "AI Generated Content Detected"
	}
	return "Real/Authentic Image"
}

// RegionCounts summarizes a region sequence by label.
type RegionCounts struct {
	Total int `json:"total"`
	AI    int `json:"ai"`
	Real  int `json:"real"`
}

// CountRegions tallies regions by label.
func CountRegions(regions []Region) RegionCounts {
	c := RegionCounts{Total: len(regions)}
	for _, r := range regions {
		if r.IsAI {
			c.AI++
		} else {
			c.Real++
		}
	}
	return c
}

// PushHistory returns a new history with r prepended, keeping at most
// HistoryLimit entries. The input slice is not modified.
func PushHistory(history []AnalysisResult, r AnalysisResult) []AnalysisResult {
	n := len(history)
	if n > HistoryLimit-1 {
		n = HistoryLimit - 1
	}
	out := make([]AnalysisResult, 0, n+1)
	out = append(out, r)
	out = append(out, history[:n]...)
	return out
}
