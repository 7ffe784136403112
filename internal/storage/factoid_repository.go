package storage

import (
	"context"
	"maps"
	"slices"
)

// FactoidRepository reads and writes a team's factoids. Like karma, writes
// replace the whole team document and are last-writer-wins.
type FactoidRepository struct {
	docs DocumentStore
}

// NewFactoidRepository creates a repository over docs.
func NewFactoidRepository(docs DocumentStore) *FactoidRepository {
	return &FactoidRepository{docs: docs}
}

func (r *FactoidRepository) load(ctx context.Context, team string) (*factoidDocument, error) {
	key := FactoidKey(teamOrDefault(team))
	doc := &factoidDocument{}
	if _, err := r.docs.Load(ctx, key, doc); err != nil {
		return nil, err
	}
	doc.ID = key
	if doc.Data == nil {
		doc.Data = make(map[string]Fact)
	}
	return doc, nil
}

// Get returns the fact stored under index.
func (r *FactoidRepository) Get(ctx context.Context, team, index string) (Fact, bool, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return Fact{}, false, err
	}
	f, ok := doc.Data[index]
	if ok {
		f.Index = index
	}
	return f, ok, nil
}

// Put stores f under f.Index, replacing any existing fact.
func (r *FactoidRepository) Put(ctx context.Context, team string, f Fact) error {
	doc, err := r.load(ctx, team)
	if err != nil {
		return err
	}
	doc.Data[f.Index] = f
	return r.docs.Save(ctx, doc.ID, doc)
}

// Append adds values to the fact under index and returns the result.
// It reports false when there is no such fact.
func (r *FactoidRepository) Append(ctx context.Context, team, index string, values []string) (Fact, bool, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return Fact{}, false, err
	}
	f, ok := doc.Data[index]
	if !ok {
		return Fact{}, false, nil
	}
	f.Index = index
	f.Value = append(slices.Clone(f.Value), values...)
	doc.Data[index] = f
	if err := r.docs.Save(ctx, doc.ID, doc); err != nil {
		return Fact{}, false, err
	}
	return f, true, nil
}

// Delete removes the fact under index, reporting whether it existed.
func (r *FactoidRepository) Delete(ctx context.Context, team, index string) (bool, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return false, err
	}
	if _, ok := doc.Data[index]; !ok {
		return false, nil
	}
	delete(doc.Data, index)
	return true, r.docs.Save(ctx, doc.ID, doc)
}

// List returns every fact ordered by index.
func (r *FactoidRepository) List(ctx context.Context, team string) ([]Fact, error) {
	doc, err := r.load(ctx, team)
	if err != nil {
		return nil, err
	}
	facts := make([]Fact, 0, len(doc.Data))
	for _, idx := range slices.Sorted(maps.Keys(doc.Data)) {
		f := doc.Data[idx]
		f.Index = idx
		facts = append(facts, f)
	}
	return facts, nil
}

// Merge stores facts in a single save. A fact whose index already exists
// gets its values appended.
func (r *FactoidRepository) Merge(ctx context.Context, team string, facts []Fact) error {
	doc, err := r.load(ctx, team)
	if err != nil {
		return err
	}
	for _, f := range facts {
		if existing, ok := doc.Data[f.Index]; ok {
			existing.Value = append(existing.Value, f.Value...)
			doc.Data[f.Index] = existing
			continue
		}
		doc.Data[f.Index] = f
	}
	return r.docs.Save(ctx, doc.ID, doc)
}
