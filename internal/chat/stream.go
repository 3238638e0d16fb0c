package chat

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/elishakaranja/Mindset-coach/internal/ai"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

var ErrStreamConsumed = errors.New("stream already consumed")

// Stream is a streaming exchange whose user turn is already committed.
type Stream struct {
	svc   *Service
	turn  *pendingTurn
	used  bool
	reply *Reply
}

// StreamMessage performs every step of SendMessage up to the model call and
// returns a Stream to pull the reply from. Validation, ownership and
// personality errors are reported here, before any fragment.
func (s *Service) StreamMessage(ctx context.Context, caller *users.User, req SendRequest) (*Stream, error) {
	pt, err := s.begin(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	return &Stream{svc: s, turn: pt}, nil
}

func (st *Stream) ConversationID() uint64 { return st.turn.conv.ID }

// Fragments yields the reply text piece by piece. The assistant turn is
// committed only when the provider stream has been drained completely; a
// consumer that stops early leaves nothing but the user turn behind. The
// sequence can be ranged over once.
func (st *Stream) Fragments(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if st.used {
			yield("", ErrStreamConsumed)
			return
		}
		st.used = true

		var b strings.Builder
		for frag, err := range st.svc.providerStream(ctx, st.turn) {
			if err != nil {
				yield("", st.svc.modelFailure(st.turn.conv.ID, err))
				return
			}
			b.WriteString(frag)
			if !yield(frag, nil) {
				return
			}
		}

		if b.Len() == 0 {
			yield("", st.svc.modelFailure(st.turn.conv.ID, ai.ErrEmptyReply))
			return
		}
		reply, err := st.svc.finish(ctx, st.turn.conv.ID, b.String())
		if err != nil {
			yield("", err)
			return
		}
		st.reply = reply
	}
}

// Reply is the committed assistant turn, or nil until Fragments completes.
func (st *Stream) Reply() *Reply { return st.reply }

// providerStream falls back to a single fragment when the provider cannot
// stream.
func (s *Service) providerStream(ctx context.Context, pt *pendingTurn) iter.Seq2[string, error] {
	if sp, ok := s.provider.(ai.StreamProvider); ok {
		return sp.Stream(ctx, pt.personality.Instruction, pt.transcript, pt.userMsg.Content)
	}
	return func(yield func(string, error) bool) {
		text, err := s.complete(ctx, pt.personality.Instruction, pt.transcript, pt.userMsg.Content)
		yield(text, err)
	}
}
