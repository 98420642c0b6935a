package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityRef is a backend reference that may arrive as a bare id (string or number)
// or as an embedded object carrying an id.
type EntityRef struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// UnmarshalJSON accepts "id", 42, {"id": ...} and {"_id": ...}.
func (r *EntityRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = EntityRef{}
		return nil
	}
	switch data[0] {
	case '{':
		var obj struct {
			ID       json.RawMessage `json:"id"`
			MongoID  json.RawMessage `json:"_id"`
			Title    string          `json:"title"`
			Username string          `json:"username"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		raw := obj.ID
		if len(raw) == 0 {
			raw = obj.MongoID
		}
		id, err := decodeID(raw)
		if err != nil {
			return err
		}
		*r = EntityRef{ID: id, Title: obj.Title, Username: obj.Username}
		return nil
	default:
		id, err := decodeID(data)
		if err != nil {
			return err
		}
		*r = EntityRef{ID: id}
		return nil
	}
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported id value %s", string(raw))
	}
	return n.String(), nil
}
