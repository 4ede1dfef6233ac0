package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const userDataFile = "user.data"

// UserData holds user-specific settings that are stored locally
type UserData struct {
	LastConnection string    `json:"last_connection"`
	LastLocalDir   string    `json:"last_local_dir"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	path string
}

// LoadUserData loads user data from dataDir. A missing or unreadable file
// yields defaults.
func LoadUserData(dataDir string) (*UserData, error) {
	userDataPath := filepath.Join(dataDir, userDataFile)

	if _, err := os.Stat(userDataPath); os.IsNotExist(err) {
		return createDefaultUserData(userDataPath), nil
	}

	data, err := os.ReadFile(userDataPath)
	if err != nil {
		return createDefaultUserData(userDataPath), nil
	}

	var userData UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		// Invalid JSON, return default
		return createDefaultUserData(userDataPath), nil
	}
	userData.path = userDataPath

	return &userData, nil
}

// SaveUserData writes user data back to its file
func (ud *UserData) SaveUserData() error {
	if err := os.MkdirAll(filepath.Dir(ud.path), 0700); err != nil {
		return err
	}

	ud.UpdatedAt = time.Now()
	if ud.CreatedAt.IsZero() {
		ud.CreatedAt = ud.UpdatedAt
	}

	data, err := json.MarshalIndent(ud, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(ud.path, data, 0600)
}

// SetLastConnection remembers the connection opened most recently and saves
func (ud *UserData) SetLastConnection(name string) error {
	ud.LastConnection = name
	return ud.SaveUserData()
}

// SetLastLocalDir remembers the local pane directory and saves
func (ud *UserData) SetLastLocalDir(dir string) error {
	ud.LastLocalDir = dir
	return ud.SaveUserData()
}

func createDefaultUserData(path string) *UserData {
	now := time.Now()
	return &UserData{
		CreatedAt: now,
		UpdatedAt: now,
		path:      path,
	}
}
