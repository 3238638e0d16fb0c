package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/chat"
	"github.com/elishakaranja/Mindset-coach/internal/common"
)

type sendMessageReq struct {
	Message        string  `json:"message"`
	ConversationID *uint64 `json:"conversation_id"`
	PersonalityID  *string `json:"personality_id"`
}

func (r sendMessageReq) toSend() chat.SendRequest {
	out := chat.SendRequest{Text: r.Message}
	if r.ConversationID != nil {
		out.ConversationID = *r.ConversationID
	}
	if r.PersonalityID != nil {
		out.Personality = *r.PersonalityID
	}
	return out
}

type messageView struct {
	ID        uint64    `json:"id"`
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func viewMessages(msgs []chat.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out
}

func (h *Handler) bindSend(c *gin.Context) (chat.SendRequest, bool) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return chat.SendRequest{}, false
	}
	return req.toSend(), true
}

func conversationParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return 0, false
	}
	return id, true
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	req, ok := h.bindSend(c)
	if !ok {
		return
	}

	reply, err := h.Chat.SendMessage(c.Request.Context(), u, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": reply.ConversationID,
		"response":        reply.Text,
		"message":         reply.Text,
		"created_at":      reply.CreatedAt,
	})
}

func (h *Handler) ListConversations(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	convs, err := h.Chat.ListConversations(c.Request.Context(), u.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if convs == nil {
		convs = []chat.ConversationSummary{}
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) GetConversation(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := conversationParam(c)
	if !ok {
		return
	}

	conv, err := h.Chat.GetConversation(c.Request.Context(), u.ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         conv.ID,
		"created_at": conv.CreatedAt,
		"updated_at": conv.UpdatedAt,
		"messages":   viewMessages(conv.Messages),
	})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := conversationParam(c)
	if !ok {
		return
	}
	if err := h.Chat.DeleteConversation(c.Request.Context(), u.ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ChatHistory(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	msgs, err := h.Chat.History(c.Request.Context(), u.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewMessages(msgs))
}

const heartbeatInterval = 15 * time.Second

type streamEvent struct {
	frag string
	err  error
}

// SendChatMessageStream answers over server-sent events. Everything up to the
// model call happens before the first byte, so request errors still get a
// normal JSON response.
func (h *Handler) SendChatMessageStream(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	req, ok := h.bindSend(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	st, err := h.Chat.StreamMessage(ctx, u, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	send := func(event string, payload gin.H) {
		payload["type"] = event
		c.SSEvent(event, payload)
		c.Writer.Flush()
	}
	send("start", gin.H{"conversation_id": st.ConversationID()})

	// The producer stops as soon as done closes; an unfinished stream commits
	// no assistant turn.
	events := make(chan streamEvent)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(events)
		for frag, err := range st.Fragments(ctx) {
			select {
			case events <- streamEvent{frag, err}:
			case <-done:
				return
			}
		}
	}()

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				reply := st.Reply()
				if reply == nil {
					return
				}
				send("done", gin.H{
					"conversation_id": reply.ConversationID,
					"message_id":      reply.MessageID,
					"created_at":      reply.CreatedAt,
				})
				return
			}
			if ev.err != nil {
				h.Log.Warn("chat stream failed",
					zap.Uint64("conversation_id", st.ConversationID()),
					zap.Error(ev.err))
				send("error", gin.H{"message": ev.err.Error()})
				return
			}
			send("chunk", gin.H{"delta": ev.frag})

		case <-ticker.C:
			send("ping", gin.H{"ts": time.Now().Unix()})

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	req, ok := h.bindSend(c)
	if !ok {
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	job, created, err := h.Chat.SubmitMessage(c.Request.Context(), u, req, idempoKey)
	if err != nil {
		if errors.Is(err, chat.ErrAsyncDisabled) {
			common.Fail(c, http.StatusNotFound, 40400, "route not found")
			return
		}
		h.fail(c, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"job_id":          job.ID,
		"conversation_id": job.ConversationID,
		"status":          job.Status,
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	u, ok := h.caller(c)
	if !ok {
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.Chat.GetJob(c.Request.Context(), u.ID, jobID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                j.ID,
		"conversation_id":   j.ConversationID,
		"status":            j.Status,
		"result_message_id": j.ResultMessageID,
		"error":             j.Error,
		"created_at":        j.CreatedAt,
		"updated_at":        j.UpdatedAt,
	})
}
