package client

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// persistedConnection survives restarts so the control surface can show when
// each character was last online.
type persistedConnection struct {
	Connects           int    `json:"connects,omitempty"`
	LastConnectedAt    string `json:"last_connected_at,omitempty"`
	LastDisconnectedAt string `json:"last_disconnected_at,omitempty"`
	LastError          string `json:"last_error,omitempty"`
}

func loadStateFile(path string) (map[string]persistedConnection, error) {
	if path == "" {
		return map[string]persistedConnection{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]persistedConnection{}, nil
		}
		return nil, oops.In("client").Wrapf(err, "read state file")
	}
	var m map[string]persistedConnection
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, oops.In("client").Wrapf(err, "parse state file")
	}
	if m == nil {
		m = map[string]persistedConnection{}
	}
	return m, nil
}

func writeFileAtomic(path string, b []byte) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
