package reportrepo

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Report is one row of table reports.
type Report struct {
	ID      string  `json:"id" db:"id" validate:"required"`
	AppID   string  `json:"app_id" db:"app_id" validate:"required"`
	AppName string  `json:"app_name" db:"app_name" validate:"required"`
	Reasons Reasons `json:"reasons" db:"reasons" validate:"required,min=1"`

	// Timestamp is unix millisecond in UTC
	Timestamp int64 `json:"timestamp" db:"timestamp" validate:"required"`
}

// Reasons is stored as a JSONB array of reason labels.
type Reasons []string

func (r Reasons) Value() (driver.Value, error) {
	if r == nil {
		r = Reasons{}
	}

	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func (r *Reasons) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Reasons{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Reasons", src)
	}

	out := make([]string, 0)
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("reasons is not a json array of string: %w", err)
	}

	*r = out
	return nil
}
