package main

import (
	"context"

	"articlesync/internal/ipc"
	"articlesync/internal/syncqueue"
)

type queueAPI interface {
	Stats(ctx context.Context) (syncqueue.Stats, error)
	Mark(ctx context.Context, articleIDs []string, key syncqueue.StatusKey, flag bool) (int, error)
	Discard(ctx context.Context, articleID string, key syncqueue.StatusKey) (bool, error)
	Pending(ctx context.Context, key syncqueue.StatusKey) ([]string, int, error)
	List(ctx context.Context, states []syncqueue.State) ([]ipc.Record, error)
	ReleaseClaims(ctx context.Context) (int64, error)
	Health(ctx context.Context) (syncqueue.DatabaseHealth, error)
}

// --- IPC adapter ---

type queueIPCAdapter struct {
	client *ipc.Client
}

func (a *queueIPCAdapter) Stats(_ context.Context) (syncqueue.Stats, error) {
	resp, err := a.client.Status()
	if err != nil {
		return syncqueue.Stats{}, err
	}
	return statsFromStatus(resp), nil
}

func statsFromStatus(resp *ipc.StatusResponse) syncqueue.Stats {
	stats := syncqueue.Stats{
		Total:   resp.QueueTotal,
		Pending: resp.QueuePending,
		Claimed: resp.QueueClaimed,
		PerKey:  make(map[syncqueue.StatusKey]int, len(resp.QueuePerKey)),
	}
	for key, count := range resp.QueuePerKey {
		stats.PerKey[syncqueue.StatusKey(key)] = count
	}
	return stats
}

func (a *queueIPCAdapter) Mark(_ context.Context, articleIDs []string, key syncqueue.StatusKey, flag bool) (int, error) {
	resp, err := a.client.Mark(articleIDs, key.String(), flag)
	if err != nil {
		return 0, err
	}
	return resp.Queued, nil
}

func (a *queueIPCAdapter) Discard(_ context.Context, articleID string, key syncqueue.StatusKey) (bool, error) {
	resp, err := a.client.Discard(articleID, key.String())
	if err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) Pending(_ context.Context, key syncqueue.StatusKey) ([]string, int, error) {
	resp, err := a.client.Pending(key.String())
	if err != nil {
		return nil, 0, err
	}
	return resp.ArticleIDs, resp.Total, nil
}

func (a *queueIPCAdapter) List(_ context.Context, states []syncqueue.State) ([]ipc.Record, error) {
	raw := make([]string, 0, len(states))
	for _, state := range states {
		raw = append(raw, string(state))
	}
	resp, err := a.client.List(raw)
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (a *queueIPCAdapter) ReleaseClaims(_ context.Context) (int64, error) {
	resp, err := a.client.ReleaseClaims()
	if err != nil {
		return 0, err
	}
	return resp.Released, nil
}

func (a *queueIPCAdapter) Health(_ context.Context) (syncqueue.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return syncqueue.DatabaseHealth{}, err
	}
	return resp.Health, nil
}

// --- Store adapter ---

type queueStoreAdapter struct {
	store *syncqueue.Store
}

func (a *queueStoreAdapter) Stats(ctx context.Context) (syncqueue.Stats, error) {
	return a.store.Stats(ctx)
}

func (a *queueStoreAdapter) Mark(ctx context.Context, articleIDs []string, key syncqueue.StatusKey, flag bool) (int, error) {
	records := make([]syncqueue.Record, 0, len(articleIDs))
	for _, id := range articleIDs {
		records = append(records, syncqueue.Record{ArticleID: id, Key: key, Flag: flag})
	}
	if err := a.store.Upsert(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (a *queueStoreAdapter) Discard(ctx context.Context, articleID string, key syncqueue.StatusKey) (bool, error) {
	return a.store.Discard(ctx, articleID, key)
}

func (a *queueStoreAdapter) Pending(ctx context.Context, key syncqueue.StatusKey) ([]string, int, error) {
	total, err := a.store.PendingCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	if key == "" {
		return nil, total, nil
	}
	ids, err := a.store.PendingArticleIDs(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

func (a *queueStoreAdapter) List(ctx context.Context, states []syncqueue.State) ([]ipc.Record, error) {
	records, err := a.store.List(ctx, states...)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.Record, 0, len(records))
	for _, record := range records {
		out = append(out, ipc.FromQueueRecord(record))
	}
	return out, nil
}

func (a *queueStoreAdapter) ReleaseClaims(ctx context.Context) (int64, error) {
	return a.store.ReleaseAllClaimed(ctx)
}

func (a *queueStoreAdapter) Health(ctx context.Context) (syncqueue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}
