package messages

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

//go:embed defaults.json
var defaultMessages []byte

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Messages struct {
	SyncComplete MessageText `json:"sync_complete"`
}

var (
	loaded   Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the notifications JSON file and caches the result. An empty
// path uses the built-in texts; fields missing from the file keep their defaults.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parse(path)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return &loaded, nil
}

func parse(path string) (Messages, error) {
	var m Messages
	if err := json.Unmarshal(defaultMessages, &m); err != nil {
		return m, fmt.Errorf("failed to parse default messages: %w", err)
	}
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read messages file: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return m, nil
}
