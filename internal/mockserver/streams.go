package mockserver

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// frame is the union of fields the backend writes on stream frames
type frame struct {
	Type         string `json:"type,omitempty"`
	ID           int64  `json:"id,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
	ContainerID  string `json:"container_id,omitempty"`
	Message      string `json:"message,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	Stream       string `json:"stream,omitempty"`
	Level        string `json:"level,omitempty"`
	Data         string `json:"data,omitempty"`
}

// frameWriter hides whether frames go out as data: lines or WebSocket messages
type frameWriter func(f frame) error

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	if _, ok := s.findApp(appID); !ok {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("log stream upgrade failed", "err", err)
			return
		}
		defer conn.Close()
		s.streamLogs(r, appID, func(f frame) error { return conn.WriteJSON(f) })
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.streamLogs(r, appID, func(f frame) error {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
}

func (s *Server) streamLogs(r *http.Request, appID string, write frameWriter) {
	containerID := "rivetr-" + appID
	if err := write(frame{Type: "connected", ContainerID: containerID}); err != nil {
		return
	}

	ticker := time.NewTicker(s.config.LogInterval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			line := runtimeLines[rand.Intn(len(runtimeLines))]
			f := frame{
				Type:      "log",
				Message:   line.message,
				Stream:    line.stream,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			if err := write(f); err != nil {
				return
			}
			sent++
			if s.config.LogCount > 0 && sent >= s.config.LogCount {
				_ = write(frame{Type: "end", Message: "Container stopped"})
				return
			}
		}
	}
}

// terminalInput is an inbound terminal frame
type terminalInput struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	if _, ok := s.findApp(appID); !ok {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("terminal upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := func(f frame) bool { return conn.WriteJSON(f) == nil }
	if !send(frame{Type: "connected", ContainerID: "rivetr-" + appID}) {
		return
	}
	if !send(frame{Type: "data", Data: "/app $ "}) {
		return
	}

	var line strings.Builder
	for {
		var in terminalInput
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		switch in.Type {
		case "resize":
			if !send(frame{Type: "data", Data: fmt.Sprintf("\r\n[resized to %dx%d]\r\n/app $ ", in.Cols, in.Rows)}) {
				return
			}
		case "data":
			for _, ch := range in.Data {
				switch ch {
				case '\r', '\n':
					cmd := strings.TrimSpace(line.String())
					line.Reset()
					if cmd == "exit" {
						_ = send(frame{Type: "data", Data: "\r\n"})
						_ = send(frame{Type: "end", Message: "Session ended"})
						return
					}
					if !send(frame{Type: "data", Data: "\r\n" + shellReply(cmd) + "/app $ "}) {
						return
					}
				case 0x7f:
					if n := line.Len(); n > 0 {
						trimmed := []rune(line.String())
						line.Reset()
						line.WriteString(string(trimmed[:len(trimmed)-1]))
						if !send(frame{Type: "data", Data: "\b \b"}) {
							return
						}
					}
				default:
					line.WriteRune(ch)
					if !send(frame{Type: "data", Data: string(ch)}) {
						return
					}
				}
			}
		}
	}
}

// shellReply fakes the output of a few commands
func shellReply(cmd string) string {
	switch {
	case cmd == "":
		return ""
	case cmd == "pwd":
		return "/app\r\n"
	case cmd == "whoami":
		return "app\r\n"
	case cmd == "ls":
		return "Dockerfile  package.json  node_modules  src\r\n"
	case strings.HasPrefix(cmd, "echo "):
		return strings.TrimPrefix(cmd, "echo ") + "\r\n"
	default:
		return "sh: " + strings.Fields(cmd)[0] + ": not found\r\n"
	}
}

func (s *Server) handleBuildLogs(w http.ResponseWriter, r *http.Request) {
	deploymentID := chi.URLParam(r, "deployment_id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("build log upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	interval := s.config.LogInterval / 4
	for i, step := range s.config.BuildSteps {
		level := "info"
		if strings.HasPrefix(step, "WARN") {
			level = "warn"
		}
		f := frame{
			ID:           int64(i + 1),
			DeploymentID: deploymentID,
			Level:        level,
			Message:      step,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := conn.WriteJSON(f); err != nil {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(interval):
		}
	}
	_ = conn.WriteJSON(frame{Type: "end"})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "build finished"))
}
