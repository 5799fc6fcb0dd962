package syncqueue

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// StatusKey identifies which boolean article attribute a record tracks.
type StatusKey string

const (
	StatusRead    StatusKey = "read"
	StatusStarred StatusKey = "starred"
)

var allStatusKeys = []StatusKey{
	StatusRead,
	StatusStarred,
}

var statusKeySet = func() map[StatusKey]struct{} {
	set := make(map[StatusKey]struct{}, len(allStatusKeys))
	for _, key := range allStatusKeys {
		set[key] = struct{}{}
	}
	return set
}()

var keyFolder = cases.Fold()

// AllStatusKeys returns the recognized status keys in display order.
func AllStatusKeys() []StatusKey {
	out := make([]StatusKey, len(allStatusKeys))
	copy(out, allStatusKeys)
	return out
}

// ParseStatusKey resolves user input to a known status key, ignoring case and
// surrounding whitespace.
func ParseStatusKey(value string) (StatusKey, error) {
	folded := StatusKey(keyFolder.String(strings.TrimSpace(value)))
	if !folded.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatusKey, value)
	}
	return folded, nil
}

// Valid reports whether k is a recognized status key.
func (k StatusKey) Valid() bool {
	_, ok := statusKeySet[k]
	return ok
}

func (k StatusKey) String() string { return string(k) }

// State is the claim state of a record.
type State string

const (
	// StatePending records are visible to the next claim.
	StatePending State = "pending"
	// StateClaimed records belong to an in-flight delivery batch.
	StateClaimed State = "claimed"
)

// ParseState resolves a state name.
func ParseState(value string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(value))) {
	case StatePending:
		return StatePending, nil
	case StateClaimed:
		return StateClaimed, nil
	default:
		return "", fmt.Errorf("unknown record state %q", value)
	}
}

// Record is one pending status change for an article.
type Record struct {
	ArticleID string    `json:"article_id"`
	Key       StatusKey `json:"status_key"`
	Flag      bool      `json:"flag"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Claimed reports whether the record is owned by an in-flight batch.
func (r Record) Claimed() bool {
	return r.State == StateClaimed
}

// Stats aggregates record counts for backlog reporting.
type Stats struct {
	Total   int               `json:"total"`
	Pending int               `json:"pending"`
	Claimed int               `json:"claimed"`
	PerKey  map[StatusKey]int `json:"per_key"`
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present,omitempty"`
	MissingColumns   []string `json:"missing_columns,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalRecords     int      `json:"total_records"`
	Error            string   `json:"error,omitempty"`
}
