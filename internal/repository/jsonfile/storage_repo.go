package jsonfile

import (
	"os"
	"path/filepath"
)

// StorageRepo resolves the on-disk paths for avatars, save data, and
// trophy blobs under v3kn/Users/<npid>/... and v3kn/Trophies/<id>/....
type StorageRepo struct {
	dataDir string
}

func NewStorageRepo(dataDir string) *StorageRepo {
	return &StorageRepo{dataDir: dataDir}
}

func (r *StorageRepo) userDir(npid string) string {
	return filepath.Join(r.dataDir, "Users", npid)
}

func (r *StorageRepo) AvatarPath(npid string) string {
	return filepath.Join(r.userDir(npid), "Avatar.png")
}

func (r *StorageRepo) SaveDataDir(npid, titleID string) string {
	return filepath.Join(r.userDir(npid), "savedata", titleID)
}

func (r *StorageRepo) TrophyDir(npid, trophyID string) string {
	return filepath.Join(r.userDir(npid), "trophy", trophyID)
}

func (r *StorageRepo) TrophySummaryPath(npid string) string {
	return filepath.Join(r.userDir(npid), "trophy", "trophies.xml")
}

func (r *StorageRepo) TrophyConfDir(trophyID string) string {
	return filepath.Join(r.dataDir, "Trophies", trophyID)
}

func (r *StorageRepo) EnsureUserDirs(npid string) error {
	for _, sub := range []string{"savedata", "trophy"} {
		if err := os.MkdirAll(filepath.Join(r.userDir(npid), sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (r *StorageRepo) RemoveUser(npid string) error {
	return os.RemoveAll(r.userDir(npid))
}

func (r *StorageRepo) RenameUser(oldNPID, newNPID string) error {
	oldPath := r.userDir(oldNPID)
	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(oldPath, r.userDir(newNPID))
}
