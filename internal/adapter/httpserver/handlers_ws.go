package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Riotcoke123/clipper/internal/apierr"
	"github.com/Riotcoke123/clipper/internal/domain"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// controlMessage is the envelope for every client->server WebSocket
// message, matching the HTTP surface's payload shapes per §6's "these are
// equivalent in semantics."
type controlMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type getJobStatusPayload struct {
	JobID string `json:"jobId"`
}

type refreshStreamersPayload struct {
	Platform domain.Platform `json:"platform"`
}

// handleWebSocket upgrades the connection, subscribes it to the event bus
// for server->client push, and dispatches client control messages through
// the same pipeline/catalog/job-broker calls the REST handlers use.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apierr.InternalError("failed to upgrade websocket", err)
	}

	s.bus.Subscribe(conn)
	defer s.bus.Unsubscribe(conn)

	ctx := c.Request().Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatchControlMessage(ctx, conn, data)
	}

	return nil
}

// dispatchControlMessage handles one client->server message. All replies
// go through s.bus.SendTo so they're serialized on the same per-connection
// writer goroutine as the fan-out event stream, never racing a direct
// conn.WriteMessage call.
func (s *Server) dispatchControlMessage(ctx context.Context, conn *websocket.Conn, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.writeWSError(conn, "malformed control message")
		return
	}

	switch msg.Type {
	case "start_capture":
		var req captureRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.writeWSError(conn, "malformed start_capture payload")
			return
		}
		ref := domain.StreamerRef{Platform: req.Platform, PlatformID: req.StreamerID}
		s.pipeline.StartCapture(ctx, req.Platform, ref, req.MaxDuration)

	case "create_clip":
		var req clipRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.writeWSError(conn, "malformed create_clip payload")
			return
		}
		if _, err := s.pipeline.CreateClip(ctx, req.ClipID, req.StartTime, req.Duration, req.Title); err != nil {
			s.writeWSError(conn, err.Error())
		}

	case "generate_preview":
		var req previewRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.writeWSError(conn, "malformed generate_preview payload")
			return
		}
		if _, err := s.pipeline.GeneratePreview(ctx, req.ClipID, req.NumFrames); err != nil {
			s.writeWSError(conn, err.Error())
		}

	case "upload_clip":
		var req uploadRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.writeWSError(conn, "malformed upload_clip payload")
			return
		}
		if _, err := s.pipeline.Upload(ctx, req.ClipID); err != nil {
			s.writeWSError(conn, err.Error())
		}

	case "refresh_streamers":
		var req refreshStreamersPayload
		_ = json.Unmarshal(msg.Payload, &req)
		go func() {
			var err error
			if req.Platform == "" {
				_, err = s.catalog.Refresh(context.WithoutCancel(ctx))
			} else {
				_, err = s.catalog.RefreshPlatform(context.WithoutCancel(ctx), req.Platform)
			}
			if err != nil {
				s.writeWSError(conn, err.Error())
			}
		}()

	case "get_job_status":
		var req getJobStatusPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.writeWSError(conn, "malformed get_job_status payload")
			return
		}
		j, ok := s.jobs.Get(req.JobID)
		if !ok {
			s.writeWSError(conn, "job "+req.JobID+" not found")
			return
		}
		s.writeWSJSON(conn, map[string]any{"kind": "job_status", "job": j})

	default:
		s.writeWSError(conn, "unknown control message type "+msg.Type)
	}
}

func (s *Server) writeWSError(conn *websocket.Conn, message string) {
	s.writeWSJSON(conn, map[string]any{"kind": "error", "message": message})
}

func (s *Server) writeWSJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.bus.SendTo(conn, data)
}
