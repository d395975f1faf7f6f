// Package verdict produces the overall AI/real verdict for an upload.
//
// The verdict is a placeholder: it depends only on the file name and size
// and is drawn from a random source. It is deliberately not derived from the
// region labels produced by the sampler, so the two can disagree.
package verdict

import (
	"fmt"
	"math"

	"github.com/detectoo/detectoo/internal/chance"
	"github.com/detectoo/detectoo/internal/model"
)

// Methods lists the analysis methods reported with every verdict.
var Methods = []string{
	"Pixel Pattern Analysis",
	"Frequency Analysis",
	"Edge Detection",
}

// Generator draws verdicts from Rand.
type Generator struct {
	Rand chance.Source
}

// New returns a Generator using src.
func New(src chance.Source) *Generator {
	return &Generator{Rand: src}
}

// Generate returns a verdict for a file of the given name and byte size.
//
// AI is chosen with probability 0.55. Confidence lies in [65,90] for AI and
// [55,80] for real. Metric ranges shift with the label: AI verdicts get
// higher entropy and color variance and lower edge consistency.
func (g *Generator) Generate(name string, size int64) model.AnalysisResult {
	src := g.Rand
	if src == nil {
		src = chance.Default()
	}

	isAI := src.Float64() > 0.45

	base := 0.55
	if isAI {
		base = 0.65
	}
	confidence := int(math.Round((src.Float64()*0.25 + base) * 100))

	processing := fmt.Sprintf("%.0fms", src.Float64()*1000+1000)

	label := model.VerdictReal
	if isAI {
		label = model.VerdictAI
	}

	return model.AnalysisResult{
		IsAI:           isAI,
		Confidence:     confidence,
		FileName:       name,
		FileSizeKB:     int(math.Round(float64(size) / 1024)),
		ProcessingTime: processing,
		Verdict:        label,
		Methods:        append([]string(nil), Methods...),
		Metrics:        metrics(src, isAI),
	}
}

func metrics(src chance.Source, isAI bool) model.Metrics {
	entropy, variance, edges := 10.0, 20.0, 75.0
	if isAI {
		entropy, variance, edges = 50, 60, 30
	}
	return model.Metrics{
		FrequencyEntropy: decimal(src.Float64()*40 + entropy),
		ColorVariance:    decimal(src.Float64()*30 + variance),
		EdgeConsistency:  decimal(src.Float64()*25 + edges),
		NoiseLevel:       decimal(src.Float64() * 40),
	}
}

func decimal(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
