package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/report"
	"github.com/detectoo/detectoo/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // the server binds to localhost by default
	},
}

// WebSocket message types from client.
const (
	wsMsgSelectFile    = "select_file"
	wsMsgReset         = "reset"
	wsMsgToggleHeatmap = "toggle_heatmap"
	wsMsgReport        = "report"
)

// WebSocket message types to client.
const (
	wsMsgState   = "state"
	wsMsgHeatmap = "heatmap"
	wsMsgError   = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsSelectFile is the payload for "select_file" messages. Data is base64 in
// the JSON encoding.
type wsSelectFile struct {
	Name string `json:"name"`
	MIME string `json:"mime,omitempty"`
	Data []byte `json:"data"`
}

// wsStateResponse mirrors session.State for the browser.
type wsStateResponse struct {
	SessionID   string                 `json:"session_id"`
	Phase       string                 `json:"phase"`
	Generation  uint64                 `json:"generation"`
	FileName    string                 `json:"file_name,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Result      *model.AnalysisResult  `json:"result,omitempty"`
	Regions     []model.Region         `json:"regions"`
	Counts      model.RegionCounts     `json:"counts"`
	History     []model.AnalysisResult `json:"history"`
	ShowHeatmap bool                   `json:"show_heatmap"`
}

type wsHeatmapResponse struct {
	DataURL string `json:"data_url"`
}

type wsReportResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// wsSession is one browser tab's detector state.
type wsSession struct {
	id       string
	srv      *Server
	conn     *websocket.Conn
	store    *session.Store
	analyzer *session.Analyzer

	writeMu sync.Mutex
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// base64 inflates uploads by a third; leave room for the envelope.
	conn.SetReadLimit(s.cfg.UploadLimit()*4/3 + 4096)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws := &wsSession{
		id:       uuid.NewString(),
		srv:      s,
		conn:     conn,
		store:    session.NewStore(s.heatmapOptions()),
		analyzer: s.analyzer(s.cfg.Delay()),
	}
	logger := s.logger.With("session", ws.id)
	logger.Info("websocket session opened")
	s.metrics.wsClients.Inc()
	defer func() {
		s.metrics.wsClients.Dec()
		logger.Info("websocket session closed")
	}()

	ws.sendState(ws.store.State())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgSelectFile:
			ws.handleSelectFile(ctx, msg.Data)
		case wsMsgReset:
			ws.sendState(ws.store.Dispatch(session.Reset{}))
		case wsMsgToggleHeatmap:
			ws.handleToggleHeatmap()
		case wsMsgReport:
			ws.handleReport()
		default:
			ws.sendError("unknown message type: " + msg.Type)
		}
	}
}

func (ws *wsSession) handleSelectFile(ctx context.Context, data json.RawMessage) {
	var req wsSelectFile
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError("invalid select_file data")
		return
	}
	// A decode failure still yields an upload; the reducer turns it into
	// the user-facing error.
	u, err := intake.FromBytes(req.Name, req.MIME, req.Data, ws.srv.cfg.UploadLimits())
	if errors.Is(err, intake.ErrTooLarge) {
		ws.srv.metrics.reject("too_large")
		ws.srv.logger.Info("upload rejected", "file", req.Name, "error", err)
		ws.sendError("file too large")
		return
	}

	st := ws.store.Submit(ctx, ws.analyzer, u, func(st session.State, applied bool) {
		if !applied {
			return
		}
		ws.srv.metrics.observe(*st.Result, st.Regions)
		ws.sendState(st)
	})
	if st.Phase == session.PhaseError {
		ws.srv.metrics.reject(rejectReason(st.Err))
	}
	ws.sendState(st)
}

func (ws *wsSession) handleToggleHeatmap() {
	st := ws.store.Dispatch(session.HeatmapToggled{})
	ws.sendState(st)
	if !st.ShowHeatmap {
		return
	}

	img, ok := ws.store.Heatmap()
	if !ok {
		return
	}
	url, err := heatmap.DataURL(img)
	if err != nil {
		ws.sendError("rendering heatmap: " + err.Error())
		return
	}
	ws.send(wsMsgHeatmap, wsHeatmapResponse{DataURL: url})
}

func (ws *wsSession) handleReport() {
	st := ws.store.State()
	if st.Result == nil {
		ws.sendError("no analysis to report")
		return
	}
	ws.send(wsMsgReport, wsReportResponse{
		Filename: report.Filename(time.Now()),
		Content:  report.Text(*st.Result, st.Regions),
	})
}

func (ws *wsSession) sendState(st session.State) {
	resp := wsStateResponse{
		SessionID:   ws.id,
		Phase:       st.Phase.String(),
		Generation:  st.Generation,
		Error:       st.Err,
		Result:      st.Result,
		Regions:     st.Regions,
		Counts:      model.CountRegions(st.Regions),
		History:     st.History,
		ShowHeatmap: st.ShowHeatmap,
	}
	if st.Upload != nil {
		resp.FileName = st.Upload.Name
	}
	if resp.Regions == nil {
		resp.Regions = []model.Region{}
	}
	if resp.History == nil {
		resp.History = []model.AnalysisResult{}
	}
	ws.send(wsMsgState, resp)
}

func (ws *wsSession) sendError(msg string) {
	ws.send(wsMsgError, map[string]string{"message": msg})
}

// send is safe to call from the analysis goroutine.
func (ws *wsSession) send(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		ws.srv.logger.Error("ws marshal", "error", err)
		return
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		ws.srv.logger.Warn("ws write", "session", ws.id, "error", err)
	}
}
