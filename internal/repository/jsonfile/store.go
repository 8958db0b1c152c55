// Package jsonfile implements every repository interface over the flat
// JSON-file layout spec §6 fixes as the persisted-state contract: whole
// files are read in full and rewritten in full on every mutation,
// mirroring original_source/v3kn/utils/src/utils.cpp's load_users/
// save_users and friend.cpp's load_friends/save_friends.
package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
)

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
