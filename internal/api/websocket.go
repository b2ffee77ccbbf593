package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressFrame is sent while the job runs; the last frame sent on a
// connection has Type "result" and carries the job outcome.
type ProgressFrame struct {
	Type     string       `json:"type"`
	Fraction float64      `json:"fraction,omitempty"`
	Job      *JobResponse `json:"job,omitempty"`
}

// clientMessage is what a client may send; {"type":"cancel"} cancels the job.
type clientMessage struct {
	Type string `json:"type"`
}

// StreamProgress handles GET /simulations/{jobID}/ws. Progress frames are
// throttled to one per progress interval; the result frame is never dropped.
func (h *Handler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	j, err := h.job(r)
	if err != nil {
		fail(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.deps.Logger.Warn("websocket upgrade failed", "job_id", j.ID, "err", err)
		return
	}
	defer conn.Close()
	if m := h.deps.Metrics; m != nil {
		m.RecordWSConnection(1)
		defer m.RecordWSConnection(-1)
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					h.deps.Logger.Debug("websocket read", "job_id", j.ID, "err", err)
				}
				return
			}
			if msg.Type == "cancel" {
				j.Cancel()
			}
		}
	}()

	send := func(f ProgressFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			if h.deps.Metrics != nil {
				h.deps.Metrics.RecordWSError()
			}
			return false
		}
		if h.deps.Metrics != nil {
			h.deps.Metrics.RecordWSMessage()
		}
		return true
	}

	limiter := rate.NewLimiter(rate.Every(h.progressInterval), 1)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case f, ok := <-j.Progress():
			if !ok {
				resp := jobResponse(j, true)
				if !send(ProgressFrame{Type: "result", Fraction: resp.Progress, Job: &resp}) {
					return
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, resp.State.String()),
					time.Now().Add(writeWait))
				return
			}
			if limiter.Allow() && !send(ProgressFrame{Type: "progress", Fraction: f}) {
				return
			}
		}
	}
}
