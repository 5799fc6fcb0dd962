package syncqueue

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "article_id, status_key, flag, state, updated_at"

// idChunkSize bounds the number of bound parameters per IN clause.
const idChunkSize = 500

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		articleID  string
		key        string
		flag       int64
		state      string
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&articleID, &key, &flag, &state, &updatedRaw); err != nil {
		return Record{}, err
	}
	record := Record{
		ArticleID: articleID,
		Key:       StatusKey(key),
		Flag:      flag != 0,
		State:     State(state),
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// normalizeArticleIDs trims and de-duplicates ids while preserving order.
func normalizeArticleIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: empty identifier", ErrInvalidArticleID)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func idArgs(prefix []any, ids []string) []any {
	args := make([]any, 0, len(prefix)+len(ids))
	args = append(args, prefix...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
