package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/shared-terminal/backend/internal/term"
)

// For any sequence of output chunks, a late-joining subscriber's first
// frame equals the scrollback at attach time: the most recent bytes, up to
// capacity, in original order — and concatenated with the frames broadcast
// afterwards it never loses or duplicates a byte.
func TestLateJoinSnapshotProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	const capacity = 64

	properties.Property("first frame is the bounded tail of all prior output", prop.ForAll(
		func(chunks [][]byte) bool {
			proc := newFakeProcess()
			sess := New(Config{
				Command:    "/bin/true",
				Scrollback: capacity,
				Starter: func(opts term.StartOptions) (Process, error) {
					return proc, nil
				},
			}, nil, nil, nil)
			defer sess.Shutdown()

			witness := newFakeSubscriber()
			if err := sess.Attach(witness); err != nil {
				return false
			}

			var total int
			for _, chunk := range chunks {
				total += len(chunk)
				proc.Emit(chunk)
			}

			// The witness has seen every byte once the pump drained all
			// chunks; only then is the scrollback settled.
			deadline := time.Now().Add(2 * time.Second)
			for len(witness.receivedBytes()) < total {
				if time.Now().After(deadline) {
					return false
				}
				time.Sleep(time.Millisecond)
			}

			var all []byte
			for _, chunk := range chunks {
				all = append(all, chunk...)
			}
			expected := all
			if len(expected) > capacity {
				expected = expected[len(expected)-capacity:]
			}

			late := newFakeSubscriber()
			if err := sess.Attach(late); err != nil {
				return false
			}

			return bytes.Equal(late.frame(0), expected) &&
				bytes.Equal(witness.receivedBytes(), all)
		},
		gen.SliceOf(gen.SliceOfN(8, gen.UInt8())),
	))

	properties.TestingRun(t)
}
