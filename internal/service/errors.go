package service

import "errors"

// Sentinel errors, one per ERR:/WARN: code in spec §7. The HTTP layer
// maps each with errors.Is to its exact wire string, the same pattern
// the teacher's handlers use for its own (JSON-shaped) error responses.
var (
	// Auth
	ErrMissingToken      = errors.New("missing token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrMissingPassword   = errors.New("missing password")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrMissingOldPassword = errors.New("missing old password")
	ErrMissingNewPassword = errors.New("missing new password")
	ErrSamePassword      = errors.New("same password")

	// Identity
	ErrInvalidNPID = errors.New("invalid npid")
	ErrMissingNPID = errors.New("missing npid")
	ErrUserExists  = errors.New("user exists")
	ErrUserNotFound = errors.New("user not found")

	// Social
	ErrMissingTargetNPID    = errors.New("missing target npid")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadySent   = errors.New("request already sent")
	ErrNoRequestFound       = errors.New("no request found")
	ErrNotFriends           = errors.New("not friends")
	ErrCannotAddYourself    = errors.New("cannot add yourself")
	ErrCannotBlockYourself  = errors.New("cannot block yourself")
	ErrQueryTooShort        = errors.New("query too short")
	ErrMissingGroup         = errors.New("missing group")
	ErrInvalidGroup         = errors.New("invalid group")

	// Presence/polling
	ErrMissingStatus    = errors.New("missing status")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// Messaging
	ErrInvalidJSON              = errors.New("invalid json")
	ErrMissingParticipants      = errors.New("missing participants")
	ErrInvalidParticipant       = errors.New("invalid participant")
	ErrNotEnoughParticipants    = errors.New("not enough participants")
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrMissingMessage           = errors.New("missing message")
	ErrInvalidMessage           = errors.New("invalid message")
	ErrMessageTooLong           = errors.New("message too long")
	ErrMissingConversationID    = errors.New("missing conversation id")
	ErrEmptyConversationID      = errors.New("empty conversation id")
	ErrConversationNotFound     = errors.New("conversation not found")
	ErrConversationAlreadyExists = errors.New("conversation already exists")
	ErrNotInConversation        = errors.New("not in conversation")
	ErrAlreadyInConversation    = errors.New("already in conversation")
	ErrMissingParticipant       = errors.New("missing participant")
	ErrEmptyParticipant         = errors.New("empty participant")
	ErrMissingTimestamps        = errors.New("missing timestamps")
	ErrNoTimestamps             = errors.New("no timestamps")
	ErrNoMessagesDeleted        = errors.New("no messages deleted")
	ErrNotCreator               = errors.New("not creator")

	// Storage
	ErrMissingTitleID     = errors.New("missing title id")
	ErrInvalidType        = errors.New("invalid type")
	ErrInvalidID          = errors.New("invalid id")
	ErrMissingFile        = errors.New("missing file")
	ErrEmptyFile          = errors.New("empty file")
	ErrFileTooLarge       = errors.New("file too large")
	ErrInvalidPNG         = errors.New("invalid png")
	ErrDimensionsTooLarge = errors.New("dimensions too large")
	ErrFileNotFound       = errors.New("file not found")
	ErrQuotaExceeded      = errors.New("quota exceeded")

	// Soft/warn
	ErrNoSavedata       = errors.New("no savedata")
	ErrNoSavedataInfo   = errors.New("no savedata info")
	ErrNoTrophiesInfo   = errors.New("no trophies info")
	ErrNoAvatar         = errors.New("no avatar")
	ErrNoTrophyConfData = errors.New("no trophy conf data")
)
