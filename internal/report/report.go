// Package report formats an analysis as a downloadable document.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/detectoo/detectoo/internal/model"
)

// ContentType is the MIME type of the text report.
const ContentType = "text/plain; charset=utf-8"

const title = "DETECTOO - AI IMAGE DETECTION REPORT"

var rule = strings.Repeat("=", 60)

const footer = "Generated by Detectoo - Open Source AI Detection Tool\n" +
	"College Project by Anisha Sathe, Sneha Pawar & Shravani Sonawane"

// Filename returns the download name for a report produced at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("detectoo_report_%d.txt", now.UnixMilli())
}

// Text renders the plain-text report. Every value comes from r and regions;
// the output is identical for identical inputs.
func Text(r model.AnalysisResult, regions []model.Region) string {
	c := model.CountRegions(regions)
	m := r.Metrics

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n\n")

	b.WriteString("FILE INFORMATION:\n")
	fmt.Fprintf(&b, "File: %s\n", r.FileName)
	fmt.Fprintf(&b, "Size: %d KB\n", r.FileSizeKB)
	fmt.Fprintf(&b, "Processing Time: %s\n\n", r.ProcessingTime)

	b.WriteString("VERDICT:\n")
	fmt.Fprintf(&b, "%s\n", r.Verdict)
	fmt.Fprintf(&b, "Confidence: %d%%\n\n", r.Confidence)

	b.WriteString("REGION ANALYSIS:\n")
	fmt.Fprintf(&b, "Total Regions: %d\n", c.Total)
	fmt.Fprintf(&b, "AI-Generated Regions: %d\n", c.AI)
	fmt.Fprintf(&b, "Real/Natural Regions: %d\n\n", c.Real)

	b.WriteString("DETAILED METRICS:\n")
	fmt.Fprintf(&b, "• Frequency Entropy: %s%%\n", m.FrequencyEntropy)
	fmt.Fprintf(&b, "• Color Variance: %s%%\n", m.ColorVariance)
	fmt.Fprintf(&b, "• Edge Consistency: %s%%\n", m.EdgeConsistency)
	fmt.Fprintf(&b, "• Noise Level: %s%%\n\n", m.NoiseLevel)

	b.WriteString(rule + "\n")
	b.WriteString(footer)

	return b.String()
}

// Markdown renders the report as a markdown document with a region table.
func Markdown(r model.AnalysisResult, regions []model.Region) string {
	c := model.CountRegions(regions)
	m := r.Metrics

	var b strings.Builder
	b.WriteString("## Detectoo Report\n\n")
	fmt.Fprintf(&b, "**File:** `%s` (%d KB, %s)\n\n", r.FileName, r.FileSizeKB, r.ProcessingTime)
	fmt.Fprintf(&b, "**Verdict:** %s | **Confidence:** %d%%\n\n", r.Verdict, r.Confidence)
	fmt.Fprintf(&b, "**Regions:** %d total, %d AI, %d real\n\n", c.Total, c.AI, c.Real)

	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Frequency Entropy | %s%% |\n", m.FrequencyEntropy)
	fmt.Fprintf(&b, "| Color Variance | %s%% |\n", m.ColorVariance)
	fmt.Fprintf(&b, "| Edge Consistency | %s%% |\n", m.EdgeConsistency)
	fmt.Fprintf(&b, "| Noise Level | %s%% |\n", m.NoiseLevel)

	if len(regions) == 0 {
		return b.String()
	}

	b.WriteString("\n| Region | Position | Size | Label | Confidence |\n")
	b.WriteString("|--------|----------|------|-------|------------|\n")
	for _, reg := range regions {
		fmt.Fprintf(&b, "| %d | %d,%d | %dx%d | %s | %d%% |\n",
			reg.ID, reg.X, reg.Y, reg.Width, reg.Height, reg.Label(), reg.Confidence)
	}
	return b.String()
}

// Document is the JSON shape of a report.
type Document struct {
	Result  model.AnalysisResult `json:"result"`
	Counts  model.RegionCounts   `json:"counts"`
	Regions []model.Region       `json:"regions"`
}

// JSON renders the report as indented JSON.
func JSON(r model.AnalysisResult, regions []model.Region) ([]byte, error) {
	doc := Document{
		Result:  r,
		Counts:  model.CountRegions(regions),
		Regions: regions,
	}
	if doc.Regions == nil {
		doc.Regions = []model.Region{}
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(out, '\n'), nil
}
