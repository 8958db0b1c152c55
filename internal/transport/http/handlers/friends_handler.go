package handlers

import (
	"errors"
	"net/http"

	"github.com/vedran77/v3kn/internal/service"
	"github.com/vedran77/v3kn/internal/transport/http/middleware"
)

// FriendsHandler implements C5's HTTP surface (relation state machine
// plus the C5+C3 presence-enriched queries), grounded on
// original_source/v3kn/friend/src/friend.cpp's handle_friend_* family.
type FriendsHandler struct {
	friends  *service.FriendService
	presence *service.PresenceService
}

func NewFriendsHandler(friends *service.FriendService, presence *service.PresenceService) *FriendsHandler {
	return &FriendsHandler{friends: friends, presence: presence}
}

// Add implements handle_friend_add.
func (h *FriendsHandler) Add(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Add(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Accept implements handle_friend_accept.
func (h *FriendsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Accept(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Reject implements handle_friend_reject.
func (h *FriendsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Reject(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Cancel implements handle_friend_cancel.
func (h *FriendsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Cancel(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Remove implements handle_friend_remove.
func (h *FriendsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Remove(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Block implements handle_friend_block.
func (h *FriendsHandler) Block(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Block(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Unblock implements handle_friend_unblock.
func (h *FriendsHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.FormValue("target_npid")
	outcome, err := h.friends.Unblock(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, string(outcome))
}

// Presence implements handle_friend_presence, the heartbeat endpoint.
func (h *FriendsHandler) Presence(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	status := r.FormValue("status")
	nowPlaying := r.FormValue("now_playing")

	if err := h.presence.Heartbeat(r.Context(), npid, status, nowPlaying); err != nil {
		writeFriendError(w, err)
		return
	}
	writeOK(w, "")
}

// List implements handle_friend_list.
func (h *FriendsHandler) List(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	group := r.URL.Query().Get("group")

	result, err := h.friends.List(r.Context(), npid, group)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Profile implements handle_friend_profile.
func (h *FriendsHandler) Profile(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	target := r.URL.Query().Get("target_npid")
	if target == "" {
		target = npid
	}

	result, err := h.friends.Profile(r.Context(), npid, target)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Search implements handle_friend_search.
func (h *FriendsHandler) Search(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	query := r.URL.Query().Get("query")
	if len(query) < 3 {
		writeErr(w, "QueryTooShort")
		return
	}

	matches, err := h.friends.Search(r.Context(), npid, query)
	if err != nil {
		writeFriendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// Poll implements handle_friend_poll, the long-poll over the event bus.
// On timeout with nothing to report it returns the empty object, not
// null-valued fields.
func (h *FriendsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	friendStatus, events := h.presence.Poll(r.Context(), npid)
	if len(friendStatus) == 0 && len(events) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"friend_status": friendStatus,
		"events":        events,
	})
}

func writeFriendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingTargetNPID):
		writeErr(w, "MissingTargetNPID")
	case errors.Is(err, service.ErrCannotAddYourself):
		writeErr(w, "CannotAddYourself")
	case errors.Is(err, service.ErrCannotBlockYourself):
		writeErr(w, "CannotBlockYourself")
	case errors.Is(err, service.ErrUserNotFound):
		writeErr(w, "UserNotFound")
	case errors.Is(err, service.ErrAlreadyFriends):
		writeErr(w, "AlreadyFriends")
	case errors.Is(err, service.ErrRequestAlreadySent):
		writeErr(w, "RequestAlreadySent")
	case errors.Is(err, service.ErrNoRequestFound):
		writeErr(w, "NoRequestFound")
	case errors.Is(err, service.ErrNotFriends):
		writeErr(w, "NotFriends")
	case errors.Is(err, service.ErrMissingGroup):
		writeErr(w, "MissingGroup")
	case errors.Is(err, service.ErrInvalidGroup):
		writeErr(w, "InvalidGroup")
	case errors.Is(err, service.ErrMissingStatus):
		writeErr(w, "MissingStatus")
	case errors.Is(err, service.ErrInvalidStatus):
		writeErr(w, "InvalidStatus")
	case errors.Is(err, service.ErrQueryTooShort):
		writeErr(w, "QueryTooShort")
	default:
		writeErr(w, "InternalError")
	}
}
