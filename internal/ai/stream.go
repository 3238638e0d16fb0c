package ai

import (
	"context"
	"iter"
	"strings"
)

// StreamProvider is an optional interface. The returned sequence is lazy and
// single use; the concatenation of its fragments equals what Complete would
// return. A non-nil error ends the sequence. Breaking out of the range loop
// releases the underlying request.
type StreamProvider interface {
	Stream(ctx context.Context, instruction string, transcript []Turn, prompt string) iter.Seq2[string, error]
}

// Collect drains a stream into one string.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for frag, err := range seq {
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}
