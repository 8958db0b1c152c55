package service

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"regexp"

	"github.com/vedran77/v3kn/internal/logging"
	"github.com/vedran77/v3kn/internal/repository"
	"github.com/vedran77/v3kn/pkg/validator"
)

var (
	savedataIDRe = regexp.MustCompile(`^PCS.{6}$`)
	trophyIDRe   = regexp.MustCompile(`^NPWR.{8}$`)
)

const maxAvatarBytes = 2 * 1024 * 1024
const maxAvatarDimension = 128

// StorageService implements C7 (the quota accountant) and the storage
// endpoints that exercise it, grounded on
// original_source/v3kn/storage/src/storage.cpp and
// original_source/v3kn/account/src/account.cpp's avatar handlers.
type StorageService struct {
	storage repository.StorageRepository
	auth    *AuthService
	log     *logging.Domain
}

func NewStorageService(storage repository.StorageRepository, auth *AuthService, log *logging.Domain) *StorageService {
	return &StorageService{storage: storage, auth: auth, log: log}
}

func validateTypeAndID(kind, id string) error {
	switch kind {
	case "savedata":
		if !savedataIDRe.MatchString(id) {
			return ErrInvalidID
		}
	case "trophy":
		if !trophyIDRe.MatchString(id) {
			return ErrInvalidID
		}
	default:
		return ErrInvalidType
	}
	return nil
}

func dataFileName(kind string) string {
	if kind == "savedata" {
		return "savedata.psvimg"
	}
	return "TROPUSR.DAT"
}

// SaveInfo implements handle_get_save_info.
func (s *StorageService) SaveInfo(ctx context.Context, npid, titleID string) ([]byte, error) {
	if titleID == "" {
		return nil, ErrMissingTitleID
	}

	dir := s.storage.SaveDataDir(npid, titleID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, ErrNoSavedata
	}

	data, err := os.ReadFile(filepath.Join(dir, "savedata.xml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSavedataInfo
		}
		return nil, err
	}
	return data, nil
}

// TrophiesInfo implements handle_get_trophies_info.
func (s *StorageService) TrophiesInfo(ctx context.Context, npid string) ([]byte, error) {
	data, err := os.ReadFile(s.storage.TrophySummaryPath(npid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoTrophiesInfo
		}
		return nil, err
	}
	return data, nil
}

// DownloadFile implements handle_download_file.
func (s *StorageService) DownloadFile(ctx context.Context, npid, kind, id string) ([]byte, error) {
	if err := validateTypeAndID(kind, id); err != nil {
		return nil, err
	}

	var path string
	if kind == "savedata" {
		path = filepath.Join(s.storage.SaveDataDir(npid, id), dataFileName(kind))
	} else {
		path = filepath.Join(s.storage.TrophyDir(npid, id), dataFileName(kind))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return data, nil
}

// UploadFile implements handle_upload_file: the quota check and
// accounting happen before any byte reaches disk, matching the
// reference's account_mutex critical section.
func (s *StorageService) UploadFile(ctx context.Context, npid, kind, id string, fileContent, xmlContent []byte) (used, total int64, err error) {
	if err := validateTypeAndID(kind, id); err != nil {
		return 0, 0, err
	}
	if len(fileContent) == 0 {
		return 0, 0, ErrMissingFile
	}

	var dir string
	if kind == "savedata" {
		dir = s.storage.SaveDataDir(npid, id)
	} else {
		dir = s.storage.TrophyDir(npid, id)
	}
	dataPath := filepath.Join(dir, dataFileName(kind))

	var oldSize int64
	if info, statErr := os.Stat(dataPath); statErr == nil {
		oldSize = info.Size()
	}
	delta := int64(len(fileContent)) - oldSize

	used, err = s.auth.ApplyQuotaDelta(ctx, npid, delta)
	if err != nil {
		return 0, 0, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, 0, err
	}
	if err := os.WriteFile(dataPath, fileContent, 0o644); err != nil {
		return 0, 0, err
	}

	if xmlContent != nil {
		xmlPath := filepath.Join(dir, "savedata.xml")
		if kind == "trophy" {
			xmlPath = s.storage.TrophySummaryPath(npid)
		}
		_ = os.WriteFile(xmlPath, xmlContent, 0o644)
	}

	s.log.Logf("NPID: %s type: %s id: %s uploaded (%d bytes), quota: %d/%d", npid, kind, id, len(fileContent), used, s.auth.QuotaTotal())
	return used, s.auth.QuotaTotal(), nil
}

// UploadAvatar implements handle_upload_avatar, validating the PNG
// signature and bounding the declared dimensions before writing.
func (s *StorageService) UploadAvatar(ctx context.Context, npid string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if len(data) > maxAvatarBytes {
		return ErrFileTooLarge
	}
	if !validator.PNGSignatureValid(data) {
		return ErrInvalidPNG
	}

	width := binary.BigEndian.Uint32(data[16:20])
	height := binary.BigEndian.Uint32(data[20:24])
	if width > maxAvatarDimension || height > maxAvatarDimension {
		return ErrDimensionsTooLarge
	}

	path := s.storage.AvatarPath(npid)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	s.notifyAvatarChanged(npid)
	s.log.Logf("Avatar uploaded for %s (%d bytes)", npid, len(data))
	return nil
}

// notifyAvatarChanged mirrors account.cpp's placeholder hook for a
// future avatar-change notification; nothing downstream consumes it yet.
func (s *StorageService) notifyAvatarChanged(npid string) {
	s.log.Logf("Avatar changed: %s", npid)
}

// Avatar implements handle_get_avatar.
func (s *StorageService) Avatar(ctx context.Context, npid string) ([]byte, error) {
	data, err := os.ReadFile(s.storage.AvatarPath(npid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoAvatar
		}
		return nil, err
	}
	return data, nil
}

// CheckTrophyConfData implements the thin check_trophy_conf_data
// pass-through: no manifest parsing, just presence of TROPCONF.SFM.
func (s *StorageService) CheckTrophyConfData(ctx context.Context, trophyID string) (bool, error) {
	if !trophyIDRe.MatchString(trophyID) {
		return false, ErrInvalidID
	}
	path := filepath.Join(s.storage.TrophyConfDir(trophyID), "TROPCONF.SFM")
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UploadTrophyConfData implements the thin upload_trophy_conf_data
// pass-through: the posted file is written unchanged, no parsing beyond
// the NPWR ID check already performed by the caller.
func (s *StorageService) UploadTrophyConfData(ctx context.Context, trophyID string, data []byte) error {
	if !trophyIDRe.MatchString(trophyID) {
		return ErrInvalidID
	}
	if len(data) == 0 {
		return ErrEmptyFile
	}
	dir := s.storage.TrophyConfDir(trophyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "TROPCONF.SFM"), data, 0o644)
}
