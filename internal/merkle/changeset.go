package merkle

import "slices"

// ChangeSet classifies the difference between an old and a new tree.
// The three lists are disjoint and sorted.
type ChangeSet struct {
	Modified []string `json:"modified"`
	Added    []string `json:"added"`
	Deleted  []string `json:"deleted"`
}

// NewChangeSet returns a change set with empty, non-nil lists.
func NewChangeSet() ChangeSet {
	return ChangeSet{
		Modified: []string{},
		Added:    []string{},
		Deleted:  []string{},
	}
}

func (c ChangeSet) HasChanges() bool {
	return c.TotalChanges() > 0
}

func (c ChangeSet) TotalChanges() int {
	return len(c.Modified) + len(c.Added) + len(c.Deleted)
}

// Normalize sorts the lists and replaces nil lists with empty ones so the
// change set serializes identically across runs.
func (c *ChangeSet) Normalize() {
	for _, list := range []*[]string{&c.Modified, &c.Added, &c.Deleted} {
		if *list == nil {
			*list = []string{}
		}
		slices.Sort(*list)
	}
}
