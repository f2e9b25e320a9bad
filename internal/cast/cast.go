// Package cast records terminal sessions in asciinema v2 JSON-Lines format.
// Recordings are write-only artifacts; the service never reads them back.
package cast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Header is the asciinema v2 header line.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Command   string            `json:"command,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is a single asciinema v2 event line, serialized as
// [offset_seconds, type, data].
type Event struct {
	Offset float64
	Type   string // "o" for output, "i" for input
	Data   string
}

// MarshalJSON encodes the event as a three-element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Offset, e.Type, e.Data})
}

// UnmarshalJSON decodes a three-element array event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event: expected 3 elements, got %d", len(arr))
	}

	offset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid event offset")
	}
	e.Offset = offset

	kind, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid event type")
	}
	e.Type = kind

	payload, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid event data")
	}
	e.Data = payload

	return nil
}

// Recorder writes one terminal session as an asciinema v2 cast.
type Recorder struct {
	writer io.Writer
	file   *os.File // set only when the recorder owns the file
	start  time.Time
	mu     sync.Mutex
}

// NewRecorder creates a Recorder writing to path and writes the header.
func NewRecorder(path string, rows, cols uint16, command string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cast file: %w", err)
	}

	r := &Recorder{
		writer: file,
		file:   file,
		start:  time.Now(),
	}
	if err := r.writeHeader(rows, cols, command); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewRecorderWithWriter creates a Recorder on an arbitrary writer and
// writes the header. Useful for testing.
func NewRecorderWithWriter(w io.Writer, rows, cols uint16, command string) (*Recorder, error) {
	r := &Recorder{
		writer: w,
		start:  time.Now(),
	}
	if err := r.writeHeader(rows, cols, command); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) writeHeader(rows, cols uint16, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	header := Header{
		Version:   2,
		Width:     int(cols),
		Height:    int(rows),
		Timestamp: r.start.Unix(),
		Command:   command,
	}

	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal cast header: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write cast header: %w", err)
	}
	return nil
}

// WriteOutput records an output ("o") event.
func (r *Recorder) WriteOutput(data []byte) error {
	return r.writeEvent("o", data)
}

// WriteInput records an input ("i") event.
func (r *Recorder) WriteInput(data []byte) error {
	return r.writeEvent("i", data)
}

func (r *Recorder) writeEvent(kind string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event := Event{
		Offset: time.Since(r.start).Seconds(),
		Type:   kind,
		Data:   string(data),
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cast event: %w", err)
	}
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write cast event: %w", err)
	}
	return nil
}

// Close closes the cast file if the recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
