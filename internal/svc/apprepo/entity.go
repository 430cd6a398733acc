package apprepo

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// App is one row of table apps. Json tag is used for caching.
type App struct {
	ID          string `json:"id" db:"id" validate:"required"`
	Name        string `json:"name" db:"name" validate:"required"`
	Description string `json:"description" db:"description" validate:"required"`
	URL         string `json:"url" db:"url" validate:"required"`
	Category    string `json:"category" db:"category" validate:"required"`
	Tags        Tags   `json:"tags" db:"tags" validate:"-"`

	// AddedAt is unix millisecond in UTC
	AddedAt  int64 `json:"added_at" db:"added_at" validate:"required"`
	Clicks   int64 `json:"clicks" db:"clicks" validate:"min=0"`
	Featured bool  `json:"featured" db:"featured"`
	Approved bool  `json:"approved" db:"approved"`
}

// Tags is stored as a JSONB array.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		t = Tags{}
	}

	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}

	// string, not []byte: lib/pq would send []byte as a binary parameter which jsonb rejects
	return string(b), nil
}

func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Tags", src)
	}

	out := make([]string, 0)
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("tags is not a json array of string: %w", err)
	}

	*t = out
	return nil
}

// Patch holds the updatable columns, nil means untouched.
type Patch struct {
	Name        *string
	Description *string
	URL         *string
	Category    *string
	Tags        *[]string
	Featured    *bool
	Approved    *bool
}

// Empty reports whether no column would be updated.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.URL == nil && p.Category == nil &&
		p.Tags == nil && p.Featured == nil && p.Approved == nil
}
