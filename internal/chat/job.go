package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool { return s == JobSucceeded || s == JobFailed }

// Job is a deferred assistant reply. The user turn it answers is already
// committed when the job is created.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID         uint64 `gorm:"not null;index:uniq_job_user_idempo,unique,priority:1" json:"-"`
	ConversationID uint64 `gorm:"index;not null" json:"conversation_id"`
	UserMessageID  uint64 `gorm:"not null" json:"user_message_id"`
	Personality    string `gorm:"type:varchar(32);not null" json:"personality"`

	Prompt string `gorm:"type:text;not null" json:"-"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_user_idempo,unique,priority:2" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *uint64 `gorm:"index" json:"result_message_id"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "chat_jobs" }
