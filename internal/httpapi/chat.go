package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/recordpilot/internal/logging"
)

// StreamFailureReply is streamed when a message could not be answered.
const StreamFailureReply = "Sorry, I encountered an error. Please try again."

// Conversations is the session manager behind the chat endpoints.
type Conversations interface {
	Handle(ctx context.Context, id, input string) (string, error)
	NewID() string
	Reset(id string)
}

// ChatHandler serves the web chat.
type ChatHandler struct {
	conv  Conversations
	log   *logging.Logger
	now   func() time.Time
	delay time.Duration
}

// NewChatHandler creates a ChatHandler. delay paces streamed words.
func NewChatHandler(conv Conversations, delay time.Duration, log *logging.Logger) *ChatHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &ChatHandler{conv: conv, log: log, now: time.Now, delay: delay}
}

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	Message  string `json:"message" binding:"required"`
	ThreadID string `json:"thread_id"`
}

// ChatResponse is the body of a non-streamed answer.
type ChatResponse struct {
	Response  string `json:"response"`
	ThreadID  string `json:"thread_id"`
	Timestamp string `json:"timestamp"`
}

func (h *ChatHandler) bind(c *gin.Context) (ChatRequest, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return req, false
	}
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.ThreadID == "" {
		req.ThreadID = h.conv.NewID()
	}
	return req, true
}

// Chat answers one message. A missing thread_id starts a new conversation.
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	reply, err := h.conv.Handle(c.Request.Context(), req.ThreadID, req.Message)
	if err != nil {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "chat_failed", err)
		return
	}
	RespondOK(c, ChatResponse{
		Response:  reply,
		ThreadID:  req.ThreadID,
		Timestamp: h.now().Format(time.RFC3339),
	})
}

// ChatStream answers one message as server-sent events: a thread_id
// event, one event per word, then [DONE].
func (h *ChatHandler) ChatStream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.event(c, gin.H{"thread_id": req.ThreadID})

	reply, err := h.conv.Handle(ctx, req.ThreadID, req.Message)
	if err != nil {
		h.log.Error("Chat stream failed", "thread_id", req.ThreadID, "error", err)
		reply = StreamFailureReply
	}

	for _, word := range strings.Fields(reply) {
		if ctx.Err() != nil {
			return
		}
		h.event(c, gin.H{"content": word + " "})
		if h.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.delay):
			}
		}
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func (h *ChatHandler) event(c *gin.Context, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

// ResetRequest is the body of the reset endpoint.
type ResetRequest struct {
	ThreadID string `json:"thread_id" binding:"required"`
}

// Reset clears a conversation's history and pending confirmation.
func (h *ChatHandler) Reset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.conv.Reset(req.ThreadID)
	RespondOK(c, gin.H{"status": "reset", "thread_id": req.ThreadID})
}
