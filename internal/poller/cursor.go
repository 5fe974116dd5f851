package poller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cursor tracks the newest swap timestamp already fetched per pool,
// so a restart resumes without replaying the whole swap history.
type Cursor struct {
	LastSwapTs map[string]uint64 `json:"last_swap_ts"`
	UpdatedAt  string            `json:"updated_at"`
}

// CursorStore persists cursors to disk. A disabled store loads
// nothing and saves nothing.
type CursorStore struct {
	path    string
	enabled bool
}

func NewCursorStore(path string, enabled bool) *CursorStore {
	return &CursorStore{path: path, enabled: enabled}
}

func (c *CursorStore) Load() (Cursor, bool, error) {
	if !c.enabled {
		return Cursor{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{}, false, nil
		}
		return Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}

	var cur Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return Cursor{}, false, fmt.Errorf("parse cursor: %w", err)
	}
	if cur.LastSwapTs == nil {
		cur.LastSwapTs = make(map[string]uint64)
	}
	return cur, true, nil
}

func (c *CursorStore) Save(cur Cursor) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	cur.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}

	return nil
}
