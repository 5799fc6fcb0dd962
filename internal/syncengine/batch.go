package syncengine

import (
	"sort"

	"articlesync/internal/syncqueue"
)

// Batch is one delivery request: every listed article gets Key set to Flag.
type Batch struct {
	Key        syncqueue.StatusKey `json:"key"`
	Flag       bool                `json:"flag"`
	ArticleIDs []string            `json:"article_ids"`
}

type batchKey struct {
	key  syncqueue.StatusKey
	flag bool
}

// GroupBatches groups claimed records by (key, flag). Article ids within a
// batch are sorted; batches are ordered by key then flag (false first). A
// positive maxSize splits large groups into several batches.
func GroupBatches(records []syncqueue.Record, maxSize int) []Batch {
	groups := make(map[batchKey][]string)
	for _, record := range records {
		k := batchKey{key: record.Key, flag: record.Flag}
		groups[k] = append(groups[k], record.ArticleID)
	}

	keys := make([]batchKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return !keys[i].flag && keys[j].flag
	})

	var batches []Batch
	for _, k := range keys {
		ids := groups[k]
		sort.Strings(ids)
		if maxSize <= 0 {
			batches = append(batches, Batch{Key: k.key, Flag: k.flag, ArticleIDs: ids})
			continue
		}
		for start := 0; start < len(ids); start += maxSize {
			end := start + maxSize
			if end > len(ids) {
				end = len(ids)
			}
			batches = append(batches, Batch{Key: k.key, Flag: k.flag, ArticleIDs: ids[start:end]})
		}
	}
	return batches
}

// splitArticles partitions the claimed articles into those whose every batch
// succeeded and those touched by a failure. Both lists are sorted.
func splitArticles(records []syncqueue.Record, failed map[string]struct{}) (committed, released []string) {
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if _, ok := seen[record.ArticleID]; ok {
			continue
		}
		seen[record.ArticleID] = struct{}{}
		if _, bad := failed[record.ArticleID]; bad {
			released = append(released, record.ArticleID)
		} else {
			committed = append(committed, record.ArticleID)
		}
	}
	sort.Strings(committed)
	sort.Strings(released)
	return committed, released
}
