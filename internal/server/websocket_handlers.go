package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is one client command for the editing session.
type WebSocketRequest struct {
	Type   string                 `json:"type"`
	Image  []byte                 `json:"image,omitempty"` // base64 in JSON
	Name   string                 `json:"name,omitempty"`
	Width  float64                `json:"width,omitempty"`
	Height float64                `json:"height,omitempty"`
	Index  int                    `json:"index,omitempty"`
	Point  *geometry.DisplayPoint `json:"point,omitempty"`
	Points *geometry.DisplayQuad  `json:"points,omitempty"`
	Radius float64                `json:"radius,omitempty"`
	Format string                 `json:"format,omitempty"`
}

// WebSocketResponse is sent after every command. State replies embed the
// session snapshot.
type WebSocketResponse struct {
	Type string `json:"type"` // state, hit, export, error
	*session.Snapshot
	Index    *int   `json:"index,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// sessionWebSocketHandler runs one editing session per connection.
func (s *Server) sessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket session opened", "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess := session.New(s.detector, s.sessionCfg)
	defer sess.Reset()

	s.handleWebSocketConnection(ctx, conn, sess)
	slog.Info("WebSocket session closed", "remote_addr", r.RemoteAddr)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2)

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, sess, data)
		}
	}
}

// handleWebSocketMessage applies one command to sess and writes the reply.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, sess *session.Session, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, fmt.Errorf("failed to parse request: %w", err))
		return
	}

	resp, err := s.applyWebSocketRequest(ctx, sess, req)
	if err != nil {
		s.sendWebSocketError(conn, err)
		return
	}
	s.sendWebSocketResponse(conn, resp)
}

func (s *Server) applyWebSocketRequest(ctx context.Context, sess *session.Session, req WebSocketRequest) (WebSocketResponse, error) {
	var err error
	switch req.Type {
	case "load":
		err = s.wsLoad(ctx, sess, req)
	case "viewport":
		err = sess.SetViewport(ctx, req.Width, req.Height)
	case "rotate":
		err = sess.Rotate(ctx)
	case "move":
		if req.Point == nil {
			return WebSocketResponse{}, fmt.Errorf("move requires a point")
		}
		err = sess.MovePoint(req.Index, *req.Point)
	case "set_points":
		if req.Points == nil {
			return WebSocketResponse{}, fmt.Errorf("set_points requires points")
		}
		err = sess.SetPoints(*req.Points)
	case "hit_test":
		if req.Point == nil {
			return WebSocketResponse{}, fmt.Errorf("hit_test requires a point")
		}
		idx := sess.HitTest(*req.Point, req.Radius)
		return WebSocketResponse{Type: "hit", Index: &idx}, nil
	case "warp":
		return s.wsWarp(ctx, sess)
	case "rotate_result":
		err = sess.RotateResult()
	case "discard":
		err = sess.Discard()
	case "export":
		return s.wsExport(sess, req)
	case "reset":
		sess.Reset()
	default:
		return WebSocketResponse{}, fmt.Errorf("unsupported request type: %q", req.Type)
	}
	if err != nil {
		return WebSocketResponse{}, err
	}
	return stateResponse(sess), nil
}

func (s *Server) wsLoad(ctx context.Context, sess *session.Session, req WebSocketRequest) error {
	if len(req.Image) == 0 {
		return fmt.Errorf("no image data provided")
	}
	start := time.Now()
	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image), s.constraints)
	if err != nil {
		apiRequestsTotal.WithLabelValues("websocket_load", "error").Inc()
		return err
	}
	if err := sess.Load(ctx, img, req.Name); err != nil {
		apiRequestsTotal.WithLabelValues("websocket_load", "error").Inc()
		return err
	}
	cornerOrigins.WithLabelValues(sess.Origin().String()).Inc()
	apiRequestsTotal.WithLabelValues("websocket_load", "success").Inc()
	apiProcessingDuration.WithLabelValues("websocket_load").Observe(time.Since(start).Seconds())
	return nil
}

func (s *Server) wsWarp(ctx context.Context, sess *session.Session) (WebSocketResponse, error) {
	start := time.Now()
	out, err := sess.Warp(ctx)
	if err != nil {
		apiRequestsTotal.WithLabelValues("websocket_warp", "error").Inc()
		return WebSocketResponse{}, err
	}
	apiRequestsTotal.WithLabelValues("websocket_warp", "success").Inc()
	apiProcessingDuration.WithLabelValues("websocket_warp").Observe(time.Since(start).Seconds())

	resp := stateResponse(sess)
	resp.Width, resp.Height = out.Bounds().Dx(), out.Bounds().Dy()
	return resp, nil
}

func (s *Server) wsExport(sess *session.Session, req WebSocketRequest) (WebSocketResponse, error) {
	format, err := export.ParseFormat(formatOr(req.Format))
	if err != nil {
		return WebSocketResponse{}, err
	}
	img, err := sess.Result()
	if err != nil {
		return WebSocketResponse{}, err
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, img, format, s.exportOpts); err != nil {
		return WebSocketResponse{}, err
	}
	filename, err := export.Filename(baseName(sess.Snapshot().Name), 0, format)
	if err != nil {
		return WebSocketResponse{}, err
	}
	// Exporting twice is allowed; only the first moves the state on.
	_ = sess.MarkExported()

	resp := stateResponse(sess)
	resp.Type = "export"
	resp.Format = string(format)
	resp.Filename = filename
	resp.Data = buf.Bytes()
	resp.Width, resp.Height = img.Bounds().Dx(), img.Bounds().Dy()
	return resp, nil
}

func formatOr(f string) string {
	if f == "" {
		return string(export.PNG)
	}
	return f
}

func stateResponse(sess *session.Session) WebSocketResponse {
	snap := sess.Snapshot()
	return WebSocketResponse{Type: "state", Snapshot: &snap}
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket response", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, err error) {
	s.sendWebSocketResponse(conn, WebSocketResponse{Type: "error", Error: err.Error()})
}
