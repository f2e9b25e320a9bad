package cast

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

func TestRecorderWritesValidCast(t *testing.T) {
	var buf bytes.Buffer

	recorder, err := NewRecorderWithWriter(&buf, 24, 80, "/bin/bash")
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	if err := recorder.WriteOutput([]byte("$ ls\n")); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := recorder.WriteInput([]byte("exit\n")); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	scanner := bufio.NewScanner(&buf)

	if !scanner.Scan() {
		t.Fatal("missing header line")
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if header.Version != 2 {
		t.Errorf("header version = %d, want 2", header.Version)
	}
	if header.Width != 80 || header.Height != 24 {
		t.Errorf("header size = %dx%d, want 80x24", header.Width, header.Height)
	}
	if header.Command != "/bin/bash" {
		t.Errorf("header command = %q, want /bin/bash", header.Command)
	}

	want := []Event{
		{Type: "o", Data: "$ ls\n"},
		{Type: "i", Data: "exit\n"},
	}
	var prev float64
	for i, expected := range want {
		if !scanner.Scan() {
			t.Fatalf("missing event line %d", i)
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("parse event %d: %v", i, err)
		}
		if event.Type != expected.Type || event.Data != expected.Data {
			t.Errorf("event %d = %+v, want %+v", i, event, expected)
		}
		if event.Offset < prev {
			t.Errorf("event %d offset %f before previous %f", i, event.Offset, prev)
		}
		prev = event.Offset
	}

	if scanner.Scan() {
		t.Errorf("unexpected trailing line: %s", scanner.Text())
	}
}

func TestEventRoundTrip(t *testing.T) {
	original := Event{Offset: 1.25, Type: "o", Data: "hi\x1b[0m"}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var parsed Event
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed != original {
		t.Errorf("round trip = %+v, want %+v", parsed, original)
	}
}

func TestEventUnmarshalRejectsMalformed(t *testing.T) {
	cases := []string{
		`[1.0, "o"]`,
		`["x", "o", "data"]`,
		`[1.0, 2, "data"]`,
		`[1.0, "o", 3]`,
	}
	for _, raw := range cases {
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err == nil {
			t.Errorf("unmarshal %s succeeded, want error", raw)
		}
	}
}
