package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ClipArtifacts is the ordered artifact list stored on a job. It maps to a
// JSONB column so sqlx can scan the whole job row in one query.
type ClipArtifacts []ClipArtifact

// Value implements driver.Valuer.
func (a ClipArtifacts) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *ClipArtifacts) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for clip artifacts: %T", src)
	}

	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}
