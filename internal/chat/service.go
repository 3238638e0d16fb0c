package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/ai"
	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/persona"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

// JobPublisher enqueues reply jobs for the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Service is the conversation orchestrator. It holds no mutable state of its
// own; the store is the only shared resource.
type Service struct {
	repo      *Repo
	personas  *persona.Registry
	provider  ai.Provider
	log       *zap.Logger
	publisher JobPublisher
}

func NewService(repo *Repo, personas *persona.Registry, provider ai.Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, personas: personas, provider: provider, log: log}
}

// WithPublisher enables SubmitMessage.
func (s *Service) WithPublisher(p JobPublisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) AsyncEnabled() bool { return s.publisher != nil }

type SendRequest struct {
	Text string
	// ConversationID selects an existing conversation; 0 starts a new one.
	ConversationID uint64
	// Personality overrides the caller's stored selection for this turn.
	Personality string
}

type Reply struct {
	ConversationID uint64
	MessageID      uint64
	Text           string
	CreatedAt      time.Time
}

// ResolvePersonality applies override > stored selection > registry default.
// An unknown override is a validation error; a stored key that no longer
// exists falls back to the default.
func (s *Service) ResolvePersonality(caller *users.User, override string) (persona.Personality, error) {
	if strings.TrimSpace(override) != "" {
		p, err := s.personas.Get(override)
		if err != nil {
			return persona.Personality{}, fmt.Errorf("%w: unknown personality %q", common.ErrValidation, override)
		}
		return p, nil
	}
	if caller != nil && caller.SelectedPersonality != "" {
		p, err := s.personas.Get(caller.SelectedPersonality)
		if err == nil {
			return p, nil
		}
		s.log.Warn("stored personality no longer registered",
			zap.Uint64("user_id", caller.ID),
			zap.String("personality", caller.SelectedPersonality))
	}
	return s.personas.Get(s.personas.DefaultKey())
}

// pendingTurn is a committed user turn waiting for its assistant reply.
type pendingTurn struct {
	conv        *Conversation
	userMsg     *Message
	personality persona.Personality
	transcript  []ai.Turn
}

// SendMessage runs one exchange: the user turn is committed before the model
// is called and the assistant turn only after a successful completion.
func (s *Service) SendMessage(ctx context.Context, caller *users.User, req SendRequest) (*Reply, error) {
	pt, err := s.begin(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	text, err := s.complete(ctx, pt.personality.Instruction, pt.transcript, pt.userMsg.Content)
	if err != nil {
		return nil, s.modelFailure(pt.conv.ID, err)
	}
	return s.finish(ctx, pt.conv.ID, text)
}

// complete calls the provider and treats an empty reply as a failed call, so
// no path ever commits an empty assistant turn.
func (s *Service) complete(ctx context.Context, instruction string, transcript []ai.Turn, prompt string) (string, error) {
	text, err := s.provider.Complete(ctx, instruction, transcript, prompt)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ai.ErrEmptyReply
	}
	return text, nil
}

func (s *Service) begin(ctx context.Context, caller *users.User, req SendRequest) (*pendingTurn, error) {
	if err := validateText(req.Text); err != nil {
		return nil, err
	}
	p, err := s.ResolvePersonality(caller, req.Personality)
	if err != nil {
		return nil, err
	}
	conv, userMsg, err := s.openTurn(ctx, caller.ID, req.ConversationID, req.Text)
	if err != nil {
		return nil, err
	}
	transcript, err := s.transcriptBefore(ctx, conv.ID, userMsg.ID)
	if err != nil {
		return nil, err
	}
	return &pendingTurn{conv: conv, userMsg: userMsg, personality: p, transcript: transcript}, nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message is required", common.ErrValidation)
	}
	return nil
}

// openTurn resolves or creates the conversation and commits the user turn.
func (s *Service) openTurn(ctx context.Context, userID, conversationID uint64, text string) (*Conversation, *Message, error) {
	var conv *Conversation
	if conversationID != 0 {
		c, err := s.ownedConversation(ctx, userID, conversationID)
		if err != nil {
			return nil, nil, err
		}
		conv = c
	} else {
		conv = &Conversation{UserID: userID}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			return nil, nil, err
		}
	}

	userMsg := &Message{ConversationID: conv.ID, Role: RoleUser, Content: text}
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, nil, err
	}
	return conv, userMsg, nil
}

func (s *Service) transcriptBefore(ctx context.Context, conversationID, messageID uint64) ([]ai.Turn, error) {
	history, err := s.repo.ListTranscript(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	return BuildTranscript(history), nil
}

// finish commits the assistant turn. The reply is already paid for, so a
// caller that went away does not stop the write.
func (s *Service) finish(ctx context.Context, conversationID uint64, text string) (*Reply, error) {
	msg := &Message{ConversationID: conversationID, Role: RoleAssistant, Content: text}
	if err := s.repo.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		return nil, err
	}
	return &Reply{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Text:           text,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

func (s *Service) modelFailure(conversationID uint64, err error) error {
	var me *ai.ModelError
	if !errors.As(err, &me) {
		err = &ai.ModelError{Provider: s.provider.Name(), Err: err}
	}
	s.log.Warn("model completion failed",
		zap.Uint64("conversation_id", conversationID),
		zap.String("provider", s.provider.Name()),
		zap.Error(err))
	return err
}

func (s *Service) ownedConversation(ctx context.Context, userID, id uint64) (*Conversation, error) {
	c, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		// hide existence
		return nil, fmt.Errorf("%w: conversation", common.ErrNotFound)
	}
	return c, nil
}

func (s *Service) ListConversations(ctx context.Context, userID uint64) ([]ConversationSummary, error) {
	return s.repo.ListConversations(ctx, userID)
}

// GetConversation returns an owned conversation with its full transcript.
func (s *Service) GetConversation(ctx context.Context, userID, id uint64) (*Conversation, error) {
	c, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListTranscript(ctx, c.ID, 0)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	return c, nil
}

func (s *Service) History(ctx context.Context, userID uint64) ([]Message, error) {
	return s.repo.ListUserMessages(ctx, userID)
}

func (s *Service) DeleteConversation(ctx context.Context, userID, id uint64) error {
	if _, err := s.ownedConversation(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.DeleteConversation(ctx, id)
}
