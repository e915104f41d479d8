package models

import "encoding/json"

// MessageVisitor receives exactly one call per StreamMessage.
// Adding a variant adds a method here, so every router has to handle it.
type MessageVisitor interface {
	VisitConnected(Connected)
	VisitData(Data)
	VisitLog(Log)
	VisitError(Error)
	VisitEnd(End)
}

// StreamMessage is one decoded frame received from a log, terminal or
// build-log stream. The set of variants is closed.
type StreamMessage interface {
	Accept(v MessageVisitor)
	Type() string
	isStreamMessage()
}

// Connected is sent once the backend has attached to the container
type Connected struct {
	ContainerID string
}

// Data carries raw terminal output
type Data struct {
	Payload string
}

// Log is one log line. Runtime logs set Stream, build logs set ID,
// DeploymentID and Level.
type Log struct {
	ID           int64
	DeploymentID string
	Message      string
	Timestamp    string
	Stream       string // stdout, stderr
	Level        string
}

// Error is an application-level error reported by the backend
type Error struct {
	Message string
}

// End signals the resource is no longer streaming
type End struct {
	Message string
}

func (m Connected) Accept(v MessageVisitor) { v.VisitConnected(m) }
func (m Data) Accept(v MessageVisitor)      { v.VisitData(m) }
func (m Log) Accept(v MessageVisitor)       { v.VisitLog(m) }
func (m Error) Accept(v MessageVisitor)     { v.VisitError(m) }
func (m End) Accept(v MessageVisitor)       { v.VisitEnd(m) }

func (Connected) Type() string { return "connected" }
func (Data) Type() string      { return "data" }
func (Log) Type() string       { return "log" }
func (Error) Type() string     { return "error" }
func (End) Type() string       { return "end" }

func (Connected) isStreamMessage() {}
func (Data) isStreamMessage()      {}
func (Log) isStreamMessage()       {}
func (Error) isStreamMessage()     {}
func (End) isStreamMessage()       {}

// Outbound is a frame sent from the client on a duplex stream
type Outbound interface {
	json.Marshaler
	isOutbound()
}

// Input forwards keystrokes to the remote terminal
type Input struct {
	Data string
}

// Resize reports the local viewport size
type Resize struct {
	Cols int
	Rows int
}

// MarshalJSON encodes {"type":"data","data":...}
func (i Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}{Type: "data", Data: i.Data})
}

// MarshalJSON encodes {"type":"resize","cols":..,"rows":..}
func (r Resize) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Cols int    `json:"cols"`
		Rows int    `json:"rows"`
	}{Type: "resize", Cols: r.Cols, Rows: r.Rows})
}

func (Input) isOutbound()  {}
func (Resize) isOutbound() {}
