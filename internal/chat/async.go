package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

var ErrAsyncDisabled = errors.New("async replies are disabled")

// SubmitMessage commits the user turn and queues a reply job. With a
// non-empty idempotency key a repeated submission returns the existing job
// and writes nothing. created reports whether a new job was queued.
func (s *Service) SubmitMessage(ctx context.Context, caller *users.User, req SendRequest, idempotencyKey string) (job *Job, created bool, err error) {
	if s.publisher == nil {
		return nil, false, ErrAsyncDisabled
	}
	if err := validateText(req.Text); err != nil {
		return nil, false, err
	}
	p, err := s.ResolvePersonality(caller, req.Personality)
	if err != nil {
		return nil, false, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	var keyPtr *string
	if idempotencyKey != "" {
		if len(idempotencyKey) > 128 {
			return nil, false, fmt.Errorf("%w: idempotency key too long", common.ErrValidation)
		}
		existing, err := s.repo.GetJobByUserAndIdempotencyKey(ctx, caller.ID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, false, err
		}
		keyPtr = &idempotencyKey
	}

	conv := &Conversation{UserID: caller.ID}
	if req.ConversationID != 0 {
		if conv, err = s.ownedConversation(ctx, caller.ID, req.ConversationID); err != nil {
			return nil, false, err
		}
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	// The turn and its job commit together; a submission that loses an
	// idempotency race writes nothing.
	job, created, err = s.repo.CreateTurnWithJob(ctx, conv,
		&Message{Role: RoleUser, Content: req.Text},
		&Job{
			ID:             jobID,
			UserID:         caller.ID,
			Personality:    p.ID,
			Prompt:         req.Text,
			IdempotencyKey: keyPtr,
			Status:         JobQueued,
		})
	if err != nil {
		return nil, false, err
	}

	// Enqueue only when a new job was created
	if created {
		if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
			_ = s.repo.MarkJobFailed(context.WithoutCancel(ctx), job.ID, "enqueue failed")
			return nil, false, fmt.Errorf("publish job %s: %w", job.ID, err)
		}
	}
	return job, created, nil
}

// GetJob returns a job owned by userID.
func (s *Service) GetJob(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		// hide existence
		return nil, fmt.Errorf("%w: job", common.ErrNotFound)
	}
	return j, nil
}

// RunJob produces the assistant turn for a queued job. Jobs already in a
// terminal state are skipped so redeliveries are harmless.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}
	if err := s.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark job %s running: %w", jobID, err)
	}

	p, err := s.personas.Get(j.Personality)
	if err != nil {
		s.log.Warn("job personality no longer registered",
			zap.String("job_id", jobID), zap.String("personality", j.Personality))
		if p, err = s.personas.Get(s.personas.DefaultKey()); err != nil {
			return err
		}
	}

	transcript, err := s.transcriptBefore(ctx, j.ConversationID, j.UserMessageID)
	if err != nil {
		return err
	}

	text, err := s.complete(ctx, p.Instruction, transcript, j.Prompt)
	if err != nil {
		err = s.modelFailure(j.ConversationID, err)
		_ = s.repo.MarkJobFailed(context.WithoutCancel(ctx), jobID, err.Error())
		return err
	}

	// The assistant turn and the job's success commit together, so a retry
	// never finds a reply without a settled job.
	msg := &Message{ConversationID: j.ConversationID, Role: RoleAssistant, Content: text}
	settled, err := s.repo.FinishJob(context.WithoutCancel(ctx), jobID, msg)
	if err != nil {
		return err
	}
	if settled {
		s.log.Info("job settled elsewhere, reply discarded", zap.String("job_id", jobID))
	}
	return nil
}
