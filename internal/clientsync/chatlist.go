package clientsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dm-service/internal/models"
)

// ChatList persists the chatted-user list between sessions.
type ChatList interface {
	Load() ([]models.PublicUser, error)
	Save(users []models.PublicUser) error
}

// FileChatList keeps the chat list as a JSON array in a single file.
type FileChatList struct {
	path string
}

// NewFileChatList stores the list at path. The file is created on first save.
func NewFileChatList(path string) *FileChatList {
	return &FileChatList{path: path}
}

// Load returns the stored list, or nothing when the file does not exist yet.
func (f *FileChatList) Load() ([]models.PublicUser, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chat list: %w", err)
	}

	var users []models.PublicUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode chat list: %w", err)
	}
	return users, nil
}

// Save replaces the stored list atomically.
func (f *FileChatList) Save(users []models.PublicUser) error {
	if users == nil {
		users = []models.PublicUser{}
	}
	raw, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat list: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create chat list dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".chatlist-*")
	if err != nil {
		return fmt.Errorf("create chat list temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write chat list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chat list: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
