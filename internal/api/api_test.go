package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/detectoo/detectoo/internal/config"
	"github.com/detectoo/detectoo/internal/logging"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/session"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DelayMillis = 20
	for _, m := range mutate {
		m(cfg)
	}
	return New(":0", cfg, logging.Discard())
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	return resp["error"]
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "photo.png", testPNG(t, 160, 160)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if len(resp.Regions) != 4 {
		t.Errorf("expected 4 regions, got %d", len(resp.Regions))
	}
	if resp.Counts.Total != 4 || resp.Counts.AI+resp.Counts.Real != 4 {
		t.Errorf("bad counts: %+v", resp.Counts)
	}
	if resp.Result.FileName != "photo.png" {
		t.Errorf("file name = %q", resp.Result.FileName)
	}
	if resp.Result.Confidence < 55 || resp.Result.Confidence > 90 {
		t.Errorf("confidence %d out of range", resp.Result.Confidence)
	}
	if !strings.HasPrefix(resp.ReportFilename, "detectoo_report_") {
		t.Errorf("report filename = %q", resp.ReportFilename)
	}
	if resp.Heatmap != "" {
		t.Error("heatmap should be omitted unless requested")
	}
}

func TestAnalyzeWithHeatmap(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze?heatmap=1", "photo.png", testPNG(t, 80, 80)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if !strings.HasPrefix(resp.Heatmap, "data:image/png;base64,") {
		t.Errorf("expected png data url, got %.40q", resp.Heatmap)
	}
}

func TestAnalyzeRejectsUploads(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr string
	}{
		{"text file", "notes.txt", []byte("hello there\n"), session.ErrNotImage},
		{"corrupt png", "broken.png", testPNG(t, 10, 10)[:24], session.ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", tt.file, tt.data))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if got := decodeError(t, w.Body.Bytes()); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "value")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeTooLarge(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.MaxUploadMB = 1 })
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "huge.png", make([]byte, 1<<20+1)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

// hugePNG is a valid PNG header declaring 65535x65535 grayscale pixels.
func hugePNG() []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], 65535)
	binary.BigEndian.PutUint32(ihdr[8:], 65535)
	ihdr[12] = 8

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestAnalyzeTooManyPixels(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "bomb.png", hugePNG()))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})
	data := testPNG(t, 10, 10)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "a.png", data))
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "b.png", data))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", w.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(reportRequest{
		Result: &model.AnalysisResult{
			IsAI:       true,
			Confidence: 77,
			FileName:   "cat.jpg",
			FileSizeKB: 12,
			Verdict:    model.VerdictAI,
		},
		Regions: []model.Region{{ID: 0, Width: 80, Height: 80, IsAI: true, Confidence: 91}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/report", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "attachment") || !strings.Contains(cd, "detectoo_report_") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "cat.jpg") {
		t.Errorf("report missing file name:\n%s", w.Body.String())
	}
}

func TestReportMissingResult(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/report", strings.NewReader(`{"regions":[]}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/report", strings.NewReader("{bad json"))
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json: expected 400, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "a.png", testPNG(t, 80, 80)))
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, uploadRequest(t, "/api/analyze", "a.txt", []byte("text")))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		"detectoo_analyses_total",
		`detectoo_rejected_uploads_total{reason="not_image"} 1`,
		"detectoo_regions_total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn, wantType string, v any) {
	t.Helper()
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ws read %s: %v", wantType, err)
	}
	if msg.Type != wantType {
		t.Fatalf("expected %q message, got %q: %s", wantType, msg.Type, msg.Data)
	}
	if v != nil {
		if err := json.Unmarshal(msg.Data, v); err != nil {
			t.Fatalf("unmarshal %s: %v", wantType, err)
		}
	}
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := wsMessage{Type: msgType}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		msg.Data = raw
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("ws write %s: %v", msgType, err)
	}
}

func TestWebSocketDetectorSession(t *testing.T) {
	conn := dialWS(t, newTestServer(t))

	var initial wsStateResponse
	readWS(t, conn, wsMsgState, &initial)
	if initial.Phase != "idle" || initial.SessionID == "" {
		t.Fatalf("unexpected initial state: %+v", initial)
	}

	sendWS(t, conn, wsMsgSelectFile, wsSelectFile{Name: "photo.png", Data: testPNG(t, 160, 80)})

	var loading wsStateResponse
	readWS(t, conn, wsMsgState, &loading)
	if loading.Phase != "loading" || loading.FileName != "photo.png" {
		t.Fatalf("expected loading state, got %+v", loading)
	}

	var done wsStateResponse
	readWS(t, conn, wsMsgState, &done)
	if done.Phase != "result" || done.Result == nil {
		t.Fatalf("expected result state, got %+v", done)
	}
	if done.Counts.Total != 2 || len(done.History) != 1 {
		t.Errorf("counts = %+v, history = %d", done.Counts, len(done.History))
	}
	if done.SessionID != initial.SessionID {
		t.Error("session id changed mid-session")
	}

	sendWS(t, conn, wsMsgToggleHeatmap, nil)
	var toggled wsStateResponse
	readWS(t, conn, wsMsgState, &toggled)
	if !toggled.ShowHeatmap {
		t.Error("expected heatmap shown")
	}
	var hm wsHeatmapResponse
	readWS(t, conn, wsMsgHeatmap, &hm)
	if !strings.HasPrefix(hm.DataURL, "data:image/png;base64,") {
		t.Errorf("bad heatmap url %.40q", hm.DataURL)
	}

	sendWS(t, conn, wsMsgReport, nil)
	var rep wsReportResponse
	readWS(t, conn, wsMsgReport, &rep)
	if !strings.HasSuffix(rep.Filename, ".txt") || !strings.Contains(rep.Content, "photo.png") {
		t.Errorf("unexpected report %q", rep.Filename)
	}

	sendWS(t, conn, wsMsgReset, nil)
	var reset wsStateResponse
	readWS(t, conn, wsMsgState, &reset)
	if reset.Phase != "idle" || reset.Result != nil || len(reset.History) != 1 {
		t.Errorf("unexpected reset state: %+v", reset)
	}
}

func TestWebSocketRejectsNonImage(t *testing.T) {
	conn := dialWS(t, newTestServer(t))
	readWS(t, conn, wsMsgState, nil)

	sendWS(t, conn, wsMsgSelectFile, wsSelectFile{Name: "notes.txt", MIME: "text/plain", Data: []byte("hi")})

	var st wsStateResponse
	readWS(t, conn, wsMsgState, &st)
	if st.Phase != "error" || st.Error != session.ErrNotImage {
		t.Errorf("expected not-image error, got %+v", st)
	}

	sendWS(t, conn, wsMsgReport, nil)
	readWS(t, conn, wsMsgError, nil)
}

func TestWebSocketRejectsTooManyPixels(t *testing.T) {
	conn := dialWS(t, newTestServer(t))
	readWS(t, conn, wsMsgState, nil)

	sendWS(t, conn, wsMsgSelectFile, wsSelectFile{Name: "bomb.png", MIME: "image/png", Data: hugePNG()})

	var resp map[string]string
	readWS(t, conn, wsMsgError, &resp)
	if resp["message"] != "file too large" {
		t.Errorf("message = %q", resp["message"])
	}

	// The session stays usable.
	sendWS(t, conn, wsMsgSelectFile, wsSelectFile{Name: "ok.png", MIME: "image/png", Data: testPNG(t, 10, 10)})
	var st wsStateResponse
	readWS(t, conn, wsMsgState, &st)
	if st.Phase != "loading" || st.FileName != "ok.png" {
		t.Errorf("unexpected state after rejection: %+v", st)
	}
}

func TestWebSocketUnknownMessage(t *testing.T) {
	conn := dialWS(t, newTestServer(t))
	readWS(t, conn, wsMsgState, nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	readWS(t, conn, wsMsgError, nil)

	sendWS(t, conn, "bogus", nil)
	var resp map[string]string
	readWS(t, conn, wsMsgError, &resp)
	if !strings.Contains(resp["message"], "bogus") {
		t.Errorf("message = %q", resp["message"])
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	srv := New("127.0.0.1:0", config.DefaultConfig(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
