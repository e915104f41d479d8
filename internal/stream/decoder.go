package stream

import (
	"bytes"
	"encoding/json"

	"github.com/rivetr/rivetr-console/internal/models"
)

var dataPrefix = []byte("data: ")

// MaxLineSize bounds one SSE line. Longer lines are discarded up to the next
// newline and counted as dropped.
const MaxLineSize = 1 << 20

// wireFrame is the union of every field the backend puts on a frame
type wireFrame struct {
	Type         string  `json:"type"`
	ID           int64   `json:"id"`
	DeploymentID string  `json:"deployment_id"`
	ContainerID  string  `json:"container_id"`
	Message      *string `json:"message"`
	Timestamp    string  `json:"timestamp"`
	Stream       string  `json:"stream"`
	Level        string  `json:"level"`
	Data         *string `json:"data"`
}

// ParseFrame decodes one JSON payload. It reports false for malformed JSON
// and for frame types it does not know; callers drop those frames.
func ParseFrame(payload []byte) (models.StreamMessage, bool) {
	var f wireFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, false
	}

	switch f.Type {
	case "connected":
		return models.Connected{ContainerID: f.ContainerID}, true
	case "data":
		if f.Data == nil {
			return nil, false
		}
		return models.Data{Payload: *f.Data}, true
	case "log":
		return f.log(), true
	case "error":
		return models.Error{Message: deref(f.Message)}, true
	case "end":
		return models.End{Message: deref(f.Message)}, true
	case "":
		// Build-log frames carry no type: {id, deployment_id, level, message, timestamp}
		if f.Message == nil {
			return nil, false
		}
		return f.log(), true
	default:
		return nil, false
	}
}

func (f wireFrame) log() models.Log {
	return models.Log{
		ID:           f.ID,
		DeploymentID: f.DeploymentID,
		Message:      deref(f.Message),
		Timestamp:    f.Timestamp,
		Stream:       f.Stream,
		Level:        f.Level,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// LineDecoder turns an SSE-style byte stream into messages. Chunks may split
// a frame anywhere; the incomplete tail is held until the next Feed.
type LineDecoder struct {
	pending    []byte
	dropped    int
	discarding bool // inside a line that exceeded MaxLineSize
}

// Feed appends chunk and returns the messages of every line it completed,
// in order.
func (d *LineDecoder) Feed(chunk []byte) []models.StreamMessage {
	if d.discarding {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			return nil
		}
		d.discarding = false
		chunk = chunk[idx+1:]
	}
	d.pending = append(d.pending, chunk...)

	var out []models.StreamMessage
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(d.pending[:idx], []byte{'\r'})
		d.pending = d.pending[idx+1:]

		if len(line) > MaxLineSize {
			d.dropped++
			continue
		}
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		msg, ok := ParseFrame(line[len(dataPrefix):])
		if !ok {
			d.dropped++
			continue
		}
		out = append(out, msg)
	}

	if len(d.pending) > MaxLineSize {
		d.dropped++
		d.discarding = true
		d.pending = nil
	}
	// Release the backing array once everything has been consumed
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return out
}

// Pending returns the number of buffered bytes that do not yet form a line
func (d *LineDecoder) Pending() int {
	return len(d.pending)
}

// Dropped returns how many complete data lines failed to parse
func (d *LineDecoder) Dropped() int {
	return d.dropped
}
