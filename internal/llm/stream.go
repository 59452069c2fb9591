package llm

import (
	"io"
	"strings"
)

// Stream is a lazy, finite, non-restartable sequence of generated text
// fragments. Concatenating every fragment in Recv order yields the complete
// model response.
//
// DESIGN: Pull-based. Generation proceeds exactly as fast as the consumer
// calls Recv; there is no background goroutine and no buffering beyond what
// the transport performs. A consumer that stops early MUST call Close so the
// underlying connection is released deterministically rather than waiting on
// the garbage collector.
//
// CONTRACT:
//   - Recv never returns an empty fragment; empty provider deltas are
//     filtered, not yielded.
//   - Recv returns io.EOF after the final fragment.
//   - Any other error terminates the sequence; fragments already yielded are
//     not retracted.
//   - Close is idempotent and safe after Recv has returned an error.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Collect drains a stream to completion and returns the assembled response.
// The stream is closed on every exit path.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}
