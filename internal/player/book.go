package player

import "sort"

// Book is the in-memory mapping from player id to record.
// It is not safe for concurrent use; the engine serialises access.
type Book map[string]*Record

// Get returns the record for id, creating a zeroed one on first reference.
func (b Book) Get(id string) *Record {
	if r, ok := b[id]; ok {
		return r
	}
	r := New(id)
	b[id] = r
	return r
}

// Peek returns the record for id without creating it.
func (b Book) Peek(id string) (*Record, bool) {
	r, ok := b[id]
	return r, ok
}

// Snapshot deep-copies every record.
func (b Book) Snapshot() map[string]*Record {
	out := make(map[string]*Record, len(b))
	for id, r := range b {
		out[id] = r.Clone()
	}
	return out
}

// Top returns copies of the limit highest-scoring records, ties broken by id.
func (b Book) Top(limit int) []*Record {
	all := make([]*Record, 0, len(b))
	for _, r := range b {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*Record, len(all))
	for i, r := range all {
		out[i] = r.Clone()
	}
	return out
}
