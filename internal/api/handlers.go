package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/report"
	"github.com/detectoo/detectoo/internal/session"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Analyze ---

type analyzeResponse struct {
	Result         model.AnalysisResult `json:"result"`
	Regions        []model.Region       `json:"regions"`
	Counts         model.RegionCounts   `json:"counts"`
	ReportFilename string               `json:"report_filename"`
	Heatmap        string               `json:"heatmap,omitempty"`
}

// multipart parsing keeps this much in memory before spilling to disk.
const maxMemory = 8 << 20

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.metrics.reject("rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	limit := s.cfg.UploadLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.metrics.reject("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	u, err := intake.Read(hdr.Filename, hdr.Header.Get("Content-Type"), file, s.cfg.UploadLimits())
	switch {
	case errors.Is(err, intake.ErrTooLarge):
		s.metrics.reject("too_large")
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	case err != nil && !errors.Is(err, intake.ErrDecode):
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	// The reducer owns the accept/reject rules; a throwaway state reuses them.
	st := session.Reduce(session.State{}, session.FileSelected{Upload: u})
	if st.Phase == session.PhaseError {
		s.metrics.reject(rejectReason(st.Err))
		s.logger.Info("upload rejected", "file", u.Name, "mime", u.MIME, "reason", st.Err)
		writeError(w, http.StatusBadRequest, st.Err)
		return
	}

	result, regions := s.analyzer(0).Analyze(u)
	s.metrics.observe(result, regions)
	s.logger.Info("analysis complete",
		"file", u.Name,
		"verdict", result.Verdict,
		"confidence", result.Confidence,
		"regions", len(regions),
	)

	resp := analyzeResponse{
		Result:         result,
		Regions:        regions,
		Counts:         model.CountRegions(regions),
		ReportFilename: report.Filename(time.Now()),
	}
	if resp.Regions == nil {
		resp.Regions = []model.Region{}
	}

	if r.URL.Query().Get("heatmap") == "1" {
		url, err := heatmap.DataURL(heatmap.Render(u.Image, regions, s.heatmapOptions()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rendering heatmap: "+err.Error())
			return
		}
		resp.Heatmap = url
	}

	writeJSON(w, http.StatusOK, resp)
}

func rejectReason(msg string) string {
	if msg == session.ErrDecode {
		return "decode"
	}
	return "not_image"
}

// --- Report ---

type reportRequest struct {
	Result  *model.AnalysisResult `json:"result"`
	Regions []model.Region        `json:"regions"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Result == nil {
		writeError(w, http.StatusBadRequest, "result is required")
		return
	}

	name := report.Filename(time.Now())
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, report.Text(*req.Result, req.Regions))
}
