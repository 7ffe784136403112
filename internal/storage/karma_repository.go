package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
)

const defaultTeam = "default"

func teamOrDefault(team string) string {
	if team == "" {
		return defaultTeam
	}
	return team
}

// KarmaRepository reads and writes a team's karma scores. Each mutation is
// a load-modify-save of the whole team document; two concurrent changes to
// the same team race and the last save wins.
type KarmaRepository struct {
	docs DocumentStore
}

// NewKarmaRepository creates a repository over docs.
func NewKarmaRepository(docs DocumentStore) *KarmaRepository {
	return &KarmaRepository{docs: docs}
}

func (r *KarmaRepository) load(ctx context.Context, team string) (*karmaDocument, error) {
	key := KarmaKey(teamOrDefault(team))
	doc := &karmaDocument{}
	if _, err := r.docs.Load(ctx, key, doc); err != nil {
		return nil, err
	}
	doc.ID = key
	if doc.Data == nil {
		doc.Data = make(map[string]int)
	}
	return doc, nil
}

// Score returns the score for key, 0 when unknown.
func (r *KarmaRepository) Score(ctx context.Context, team, key string) (int, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return 0, err
	}
	return doc.Data[key], nil
}

// Adjust adds delta to key's score and returns the new value.
func (r *KarmaRepository) Adjust(ctx context.Context, team, key string, delta int) (int, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return 0, err
	}
	doc.Data[key] += delta
	if err := r.docs.Save(ctx, doc.ID, doc); err != nil {
		return 0, err
	}
	return doc.Data[key], nil
}

// Top returns up to n entries ordered by score desc, then key asc.
func (r *KarmaRepository) Top(ctx context.Context, team string, n int) ([]KarmaEntry, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return nil, err
	}

	entries := make([]KarmaEntry, 0, len(doc.Data))
	for _, k := range slices.Sorted(maps.Keys(doc.Data)) {
		entries = append(entries, KarmaEntry{Key: k, Score: doc.Data[k]})
	}
	slices.SortStableFunc(entries, func(a, b KarmaEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Merge adds every score in scores to the stored ones in a single save.
func (r *KarmaRepository) Merge(ctx context.Context, team string, scores map[string]int) error {
	doc, err := r.load(ctx, team)
	if err != nil {
		return err
	}
	for k, v := range scores {
		doc.Data[k] += v
	}
	return r.docs.Save(ctx, doc.ID, doc)
}
