package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

// Repo is the conversation store. Every method runs in its own short
// transaction; gorm.ErrRecordNotFound is translated to common.ErrNotFound.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", common.ErrNotFound, what)
	}
	return err
}

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetConversation(ctx context.Context, id uint64) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "conversation")
	}
	return &c, nil
}

// AppendMessage inserts a turn and advances the owning conversation's
// updated_at in the same transaction.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendMessage(tx, m)
	})
}

func appendMessage(tx *gorm.DB, m *Message) error {
	if err := tx.Create(m).Error; err != nil {
		return err
	}
	return tx.Model(&Conversation{}).
		Where("id = ?", m.ConversationID).
		Update("updated_at", m.CreatedAt).Error
}

// ListTranscript returns the turns of a conversation oldest first. When
// beforeID > 0 only turns with a lower id are returned.
func (r *Repo) ListTranscript(ctx context.Context, conversationID, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC")
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListConversations returns the user's conversations, most recently updated
// first, each with its turn count.
func (r *Repo) ListConversations(ctx context.Context, userID uint64) ([]ConversationSummary, error) {
	var out []ConversationSummary
	err := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Select("conversations.id, conversations.created_at, conversations.updated_at, COUNT(messages.id) AS message_count").
		Joins("LEFT JOIN messages ON messages.conversation_id = conversations.id").
		Where("conversations.user_id = ?", userID).
		Group("conversations.id, conversations.created_at, conversations.updated_at").
		Order("conversations.updated_at DESC").
		Order("conversations.id DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListUserMessages returns every turn across the user's conversations in
// chronological order.
func (r *Repo) ListUserMessages(ctx context.Context, userID uint64) ([]Message, error) {
	var msgs []Message
	err := r.db.WithContext(ctx).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ?", userID).
		Order("messages.created_at ASC").
		Order("messages.id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its turns atomically. The
// explicit message delete keeps the cascade even where foreign keys are off.
func (r *Repo) DeleteConversation(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Conversation{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation", common.ErrNotFound)
		}
		return nil
	})
}

func (r *Repo) CountMessages(ctx context.Context, conversationID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}

// Job CRUD
func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "job")
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

// MarkJobFailed records the failure unless the job has already settled.
func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobQueued, JobRunning}).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, notFound(err, "job")
	}
	return &job, nil
}

// CreateTurnWithJob commits a user turn and the job answering it in one
// transaction. conv is inserted first when its ID is zero. If the job's
// (user_id, idempotency_key) is already taken the transaction is rolled back
// and the existing job is returned with created == false.
func (r *Repo) CreateTurnWithJob(ctx context.Context, conv *Conversation, m *Message, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey != nil && *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
	}
	newConv := conv.ID == 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newConv {
			if err := tx.Create(conv).Error; err != nil {
				return err
			}
		}
		m.ConversationID = conv.ID
		if err := appendMessage(tx, m); err != nil {
			return err
		}
		job.ConversationID = conv.ID
		job.UserMessageID = m.ID
		return tx.Create(job).Error
	})
	if err == nil {
		return job, true, nil
	}
	if newConv {
		conv.ID = 0
	}
	if job.IdempotencyKey == nil {
		return nil, false, err
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, common.ErrNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

var errJobSettled = errors.New("job already settled")

// FinishJob commits the assistant turn and marks the job succeeded in one
// transaction. When the job is already terminal nothing is written and
// settled is true.
func (r *Repo) FinishJob(ctx context.Context, id string, m *Message) (settled bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := appendMessage(tx, m); err != nil {
			return err
		}
		res := tx.Model(&Job{}).
			Where("id = ? AND status IN ?", id, []JobStatus{JobQueued, JobRunning}).
			Updates(map[string]any{
				"status":            JobSucceeded,
				"result_message_id": m.ID,
				"error":             nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errJobSettled
		}
		return nil
	})
	if errors.Is(err, errJobSettled) {
		return true, nil
	}
	return false, err
}
