package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vedran77/v3kn/internal/service"
	"github.com/vedran77/v3kn/internal/transport/http/middleware"
	"github.com/vedran77/v3kn/pkg/validator"
)

// MessagesHandler implements C6's HTTP surface, grounded on
// original_source/v3kn/messages/src/messages.cpp.
type MessagesHandler struct {
	messages *service.MessageService
}

func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

type createRequest struct {
	Participants []string `json:"participants"`
	Message      string   `json:"message"`
}

// Create implements handle_create_conversation.
func (h *MessagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, "InvalidJSON")
		return
	}

	conversationID, err := h.messages.Create(r.Context(), npid, req.Participants, req.Message)
	if err != nil {
		writeMessageError(w, err)
		return
	}
	writeOK(w, conversationID)
}

// Send implements handle_send_message.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	conversationID := r.FormValue("conversation_id")
	message := r.FormValue("message")

	if err := h.messages.Send(r.Context(), npid, conversationID, message); err != nil {
		writeMessageError(w, err)
		return
	}
	writeOK(w, "MessageSent")
}

type deleteRequest struct {
	ConversationID string  `json:"conversation_id"`
	Timestamps     []int64 `json:"timestamps"`
}

// Delete implements handle_delete_messages.
func (h *MessagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, "InvalidJSON")
		return
	}

	deleted, err := h.messages.Delete(r.Context(), npid, req.ConversationID, req.Timestamps)
	if err != nil {
		writeMessageError(w, err)
		return
	}
	writeOK(w, "MessagesDeleted:"+i64(int64(deleted)))
}

// AddParticipant implements handle_add_participant.
func (h *MessagesHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	conversationID := r.FormValue("conversation_id")
	participant := r.FormValue("participant")

	if err := h.messages.AddParticipant(r.Context(), npid, conversationID, participant); err != nil {
		writeMessageError(w, err)
		return
	}
	writeOK(w, "ParticipantAdded")
}

// Leave implements handle_leave_conversation.
func (h *MessagesHandler) Leave(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	conversationID := r.FormValue("conversation_id")

	if err := h.messages.Leave(r.Context(), npid, conversationID); err != nil {
		writeMessageError(w, err)
		return
	}
	writeOK(w, "LeftConversation")
}

// DeleteConversation implements handle_delete_conversation.
func (h *MessagesHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	conversationID := r.FormValue("conversation_id")

	if err := h.messages.DeleteConversation(r.Context(), npid, conversationID); err != nil {
		writeMessageError(w, err)
		return
	}
	writeOK(w, "ConversationDeleted")
}

// Conversations implements handle_get_conversations.
func (h *MessagesHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())

	summaries, err := h.messages.Conversations(r.Context(), npid)
	if err != nil {
		writeMessageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Read implements handle_read_conversation.
func (h *MessagesHandler) Read(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	conversationID := r.URL.Query().Get("conversation_id")

	messages, err := h.messages.Read(r.Context(), npid, conversationID)
	if err != nil {
		writeMessageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// Poll implements handle_poll_messages, a 30s-budget cooperative wait.
func (h *MessagesHandler) Poll(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())

	sinceParam := r.URL.Query().Get("since")
	var since int64
	if sinceParam != "" {
		var ok bool
		since, ok = validator.ParseTimestamp(sinceParam)
		if !ok {
			writeErr(w, "InvalidTimestamp")
			return
		}
	}

	messages := h.messages.Poll(r.Context(), npid, since)
	writeJSON(w, http.StatusOK, messages)
}

func writeMessageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingParticipants):
		writeErr(w, "MissingParticipants")
	case errors.Is(err, service.ErrInvalidParticipant):
		writeErr(w, "InvalidParticipant")
	case errors.Is(err, service.ErrNotEnoughParticipants):
		writeErr(w, "NotEnoughParticipants")
	case errors.Is(err, service.ErrParticipantNotFound):
		writeErr(w, "ParticipantNotFound")
	case errors.Is(err, service.ErrMissingMessage):
		writeErr(w, "MissingMessage")
	case errors.Is(err, service.ErrInvalidMessage):
		writeErr(w, "InvalidMessage")
	case errors.Is(err, service.ErrMessageTooLong):
		writeErr(w, "MessageTooLong")
	case errors.Is(err, service.ErrMissingConversationID):
		writeErr(w, "MissingConversationID")
	case errors.Is(err, service.ErrEmptyConversationID):
		writeErr(w, "EmptyConversationID")
	case errors.Is(err, service.ErrConversationNotFound):
		writeErr(w, "ConversationNotFound")
	case errors.Is(err, service.ErrConversationAlreadyExists):
		writeErr(w, "ConversationAlreadyExists")
	case errors.Is(err, service.ErrNotInConversation):
		writeErr(w, "NotInConversation")
	case errors.Is(err, service.ErrAlreadyInConversation):
		writeErr(w, "AlreadyInConversation")
	case errors.Is(err, service.ErrMissingParticipant):
		writeErr(w, "MissingParticipant")
	case errors.Is(err, service.ErrEmptyParticipant):
		writeErr(w, "EmptyParticipant")
	case errors.Is(err, service.ErrMissingTimestamps):
		writeErr(w, "MissingTimestamps")
	case errors.Is(err, service.ErrNoTimestamps):
		writeErr(w, "NoTimestamps")
	case errors.Is(err, service.ErrNoMessagesDeleted):
		writeErr(w, "NoMessagesDeleted")
	case errors.Is(err, service.ErrNotCreator):
		writeErr(w, "NotCreator")
	case errors.Is(err, service.ErrUserNotFound):
		writeErr(w, "UserNotFound")
	default:
		writeErr(w, "InternalError")
	}
}
