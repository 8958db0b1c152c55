package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/vedran77/v3kn/internal/service"
	"github.com/vedran77/v3kn/internal/transport/http/middleware"
)

const maxUploadBytes = 100 << 20 // spec §6's 100 MiB payload cap

// StorageHandler implements C7's HTTP surface, grounded on
// original_source/v3kn/storage/src/storage.cpp.
type StorageHandler struct {
	storage *service.StorageService
	auth    *service.AuthService
}

func NewStorageHandler(storage *service.StorageService, auth *service.AuthService) *StorageHandler {
	return &StorageHandler{storage: storage, auth: auth}
}

func readAll(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit+1))
}

// SaveInfo implements handle_get_save_info.
func (h *StorageHandler) SaveInfo(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))
	titleID := r.URL.Query().Get("titleid")

	data, err := h.storage.SaveInfo(r.Context(), npid, titleID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeBytes(w, "application/xml", data)
}

// TrophiesInfo implements handle_get_trophies_info.
func (h *StorageHandler) TrophiesInfo(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))
	data, err := h.storage.TrophiesInfo(r.Context(), npid)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeBytes(w, "application/xml", data)
}

// DownloadFile implements handle_download_file.
func (h *StorageHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	_ = h.auth.UpdateLastActivity(r.Context(), npid, remoteAddr(r))
	kind := r.URL.Query().Get("type")
	id := r.URL.Query().Get("id")

	data, err := h.storage.DownloadFile(r.Context(), npid, kind, id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeBytes(w, "application/octet-stream", data)
}

// UploadFile implements handle_upload_file.
func (h *StorageHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	npid := middleware.NPID(r.Context())
	kind := r.URL.Query().Get("type")
	id := r.URL.Query().Get("id")

	file, _, err := r.FormFile("file")
	if err != nil {
		writeErr(w, "MissingFile")
		return
	}
	defer file.Close()

	content, err := readAll(file, maxUploadBytes)
	if err != nil {
		writeErr(w, "FileTooLarge")
		return
	}

	var xmlContent []byte
	if xml := r.FormValue("xml"); xml != "" {
		xmlContent = []byte(xml)
	}

	used, total, err := h.storage.UploadFile(r.Context(), npid, kind, id, content, xmlContent)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeOK(w, i64(used)+":"+i64(total))
}

// CheckTrophyConfData implements the thin check_trophy_conf_data stub.
func (h *StorageHandler) CheckTrophyConfData(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	present, err := h.storage.CheckTrophyConfData(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if !present {
		writeWarn(w, "NoTrophyConfData")
		return
	}
	writeOK(w, "Present")
}

// UploadTrophyConfData implements the thin upload_trophy_conf_data stub.
func (h *StorageHandler) UploadTrophyConfData(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	file, _, err := r.FormFile("file")
	if err != nil {
		writeErr(w, "MissingFile")
		return
	}
	defer file.Close()

	content, err := readAll(file, maxUploadBytes)
	if err != nil {
		writeErr(w, "FileTooLarge")
		return
	}

	if err := h.storage.UploadTrophyConfData(r.Context(), id, content); err != nil {
		writeStorageError(w, err)
		return
	}
	writeOK(w, "TrophyConfDataUploaded")
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingTitleID):
		writeErr(w, "MissingTitleID")
	case errors.Is(err, service.ErrInvalidType):
		writeErr(w, "InvalidType")
	case errors.Is(err, service.ErrInvalidID):
		writeErr(w, "InvalidID")
	case errors.Is(err, service.ErrMissingFile):
		writeErr(w, "MissingFile")
	case errors.Is(err, service.ErrEmptyFile):
		writeErr(w, "EmptyFile")
	case errors.Is(err, service.ErrFileTooLarge):
		writeErr(w, "FileTooLarge")
	case errors.Is(err, service.ErrInvalidPNG):
		writeErr(w, "InvalidPNG")
	case errors.Is(err, service.ErrDimensionsTooLarge):
		writeErr(w, "DimensionsTooLarge")
	case errors.Is(err, service.ErrFileNotFound):
		writeErr(w, "FileNotFound")
	case errors.Is(err, service.ErrQuotaExceeded):
		writeErr(w, "QuotaExceeded")
	case errors.Is(err, service.ErrUserNotFound):
		writeErr(w, "UserNotFound")
	case errors.Is(err, service.ErrNoSavedata):
		writeWarn(w, "NoSavedata")
	case errors.Is(err, service.ErrNoSavedataInfo):
		writeWarn(w, "NoSavedataInfo")
	case errors.Is(err, service.ErrNoTrophiesInfo):
		writeWarn(w, "NoTrophiesInfo")
	default:
		writeErr(w, "InternalError")
	}
}
