package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vedran77/v3kn/internal/service"
	"github.com/vedran77/v3kn/internal/transport/http/middleware"
)

// AccountHandler implements C1/C2's HTTP surface, grounded on
// original_source/v3kn/account/src/account.cpp.
type AccountHandler struct {
	auth    *service.AuthService
	storage *service.StorageService
}

func NewAccountHandler(auth *service.AuthService, storage *service.StorageService) *AccountHandler {
	return &AccountHandler{auth: auth, storage: storage}
}

func remoteAddr(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Check implements handle_check_connection.
func (h *AccountHandler) Check(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))
	createdAt, used, total, err := h.auth.CheckConnection(r.Context(), npid, remoteAddr(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, "Connected:"+i64(createdAt)+":"+i64(used)+":"+i64(total))
}

// Quota implements handle_get_quota.
func (h *AccountHandler) Quota(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))
	used, total, err := h.auth.GetQuota(r.Context(), npid)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, i64(used)+":"+i64(total))
}

// Create implements handle_create_account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	npid := r.FormValue("npid")
	password := r.FormValue("password")

	token, err := h.auth.CreateAccount(r.Context(), npid, password, remoteAddr(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, token)
}

// Delete implements handle_delete_account.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	password := r.FormValue("password")

	if err := h.auth.DeleteAccount(r.Context(), npid, password); err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, "UserDeleted")
}

// Login implements handle_login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	npid := r.FormValue("npid")
	password := r.FormValue("password")

	token, createdAt, used, total, err := h.auth.Login(r.Context(), npid, password, remoteAddr(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, token+":"+i64(createdAt)+":"+i64(used)+":"+i64(total))
}

// ChangeNPID implements handle_change_npid.
func (h *AccountHandler) ChangeNPID(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	newNPID := r.FormValue("new_npid")

	if err := h.auth.ChangeNPID(r.Context(), npid, newNPID, remoteAddr(r)); err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, "NPIDChanged")
}

// ChangePassword implements handle_change_password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	oldPassword := r.FormValue("old_password")
	newPassword := r.FormValue("new_password")

	token, err := h.auth.ChangePassword(r.Context(), npid, oldPassword, newPassword)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeOK(w, token)
}

// UploadAvatar implements handle_upload_avatar.
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))

	file, _, err := r.FormFile("file")
	if err != nil {
		writeErr(w, "MissingFile")
		return
	}
	defer file.Close()

	data, err := readAll(file, maxUploadBytes)
	if err != nil {
		writeErr(w, "FileTooLarge")
		return
	}

	if err := h.storage.UploadAvatar(r.Context(), npid, data); err != nil {
		writeStorageError(w, err)
		return
	}
	writeOK(w, "AvatarUploaded")
}

// GetAvatar implements handle_get_avatar.
func (h *AccountHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))
	target := r.URL.Query().Get("npid")
	lookup := npid
	if target != "" {
		lookup = trimQuery(target)
	}

	data, err := h.storage.Avatar(r.Context(), lookup)
	if err != nil {
		if errors.Is(err, service.ErrNoAvatar) {
			writeErr(w, "NoAvatar")
			return
		}
		writeErr(w, "InternalError")
		return
	}
	writeBytes(w, "image/png", data)
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingToken):
		writeErr(w, "MissingToken")
	case errors.Is(err, service.ErrInvalidToken):
		writeErr(w, "InvalidToken")
	case errors.Is(err, service.ErrMissingPassword):
		writeErr(w, "MissingPassword")
	case errors.Is(err, service.ErrInvalidPassword):
		writeErr(w, "InvalidPassword")
	case errors.Is(err, service.ErrMissingOldPassword):
		writeErr(w, "MissingOldPassword")
	case errors.Is(err, service.ErrMissingNewPassword):
		writeErr(w, "MissingNewPassword")
	case errors.Is(err, service.ErrSamePassword):
		writeErr(w, "SamePassword")
	case errors.Is(err, service.ErrInvalidNPID):
		writeErr(w, "InvalidNPID")
	case errors.Is(err, service.ErrMissingNPID):
		writeErr(w, "MissingNPID")
	case errors.Is(err, service.ErrUserExists):
		writeErr(w, "UserExists")
	case errors.Is(err, service.ErrUserNotFound):
		writeErr(w, "UserNotFound")
	default:
		writeErr(w, "InternalError")
	}
}

func i64(v int64) string { return strconv.FormatInt(v, 10) }

func trimQuery(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
