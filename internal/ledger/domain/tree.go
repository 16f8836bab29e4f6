package domain

import "sort"

// AccountTree is an arena over a flat account list. Children are indexed by
// parent id, so the whole hierarchy is built from a single query.
type AccountTree struct {
	byID     map[int64]*Account
	children map[int64][]int64
	roots    []int64
}

// NewAccountTree indexes accounts. Accounts whose parent is not in the list
// are treated as roots. Siblings are ordered by account code.
func NewAccountTree(accounts []Account) *AccountTree {
	t := &AccountTree{
		byID:     make(map[int64]*Account, len(accounts)),
		children: make(map[int64][]int64),
	}
	for i := range accounts {
		a := &accounts[i]
		t.byID[a.ID] = a
	}
	for i := range accounts {
		a := &accounts[i]
		if a.ParentID != nil {
			if _, ok := t.byID[*a.ParentID]; ok {
				t.children[*a.ParentID] = append(t.children[*a.ParentID], a.ID)
				continue
			}
		}
		t.roots = append(t.roots, a.ID)
	}
	t.sortByCode(t.roots)
	for _, ids := range t.children {
		t.sortByCode(ids)
	}
	return t
}

func (t *AccountTree) sortByCode(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		return t.byID[ids[i]].AccountCode < t.byID[ids[j]].AccountCode
	})
}

func (t *AccountTree) Get(id int64) (*Account, bool) {
	a, ok := t.byID[id]
	return a, ok
}

func (t *AccountTree) Len() int {
	return len(t.byID)
}

// Roots returns top-level account ids ordered by code.
func (t *AccountTree) Roots() []int64 {
	return t.roots
}

// Children returns direct child ids ordered by code.
func (t *AccountTree) Children(id int64) []int64 {
	return t.children[id]
}

func (t *AccountTree) IsParent(id int64) bool {
	return len(t.children[id]) > 0
}

// Depth is 0 for roots.
func (t *AccountTree) Depth(id int64) int {
	depth := 0
	a, ok := t.byID[id]
	for ok && a.ParentID != nil && depth <= len(t.byID) {
		if a, ok = t.byID[*a.ParentID]; ok {
			depth++
		}
	}
	return depth
}

// WouldCycle reports whether re-parenting id under newParent closes a loop,
// i.e. newParent is id itself or one of its descendants.
func (t *AccountTree) WouldCycle(id, newParent int64) bool {
	seen := make(map[int64]bool)
	for cur := newParent; ; {
		if cur == id {
			return true
		}
		if seen[cur] {
			// pre-existing loop not involving id
			return true
		}
		seen[cur] = true
		a, ok := t.byID[cur]
		if !ok || a.ParentID == nil {
			return false
		}
		cur = *a.ParentID
	}
}

// Walk visits accounts depth-first in code order, parents before children.
func (t *AccountTree) Walk(fn func(a *Account, level int)) {
	var visit func(id int64, level int)
	visit = func(id int64, level int) {
		fn(t.byID[id], level)
		for _, c := range t.children[id] {
			visit(c, level+1)
		}
	}
	for _, r := range t.roots {
		visit(r, 0)
	}
}

// Descendants returns every id below id, depth-first.
func (t *AccountTree) Descendants(id int64) []int64 {
	var out []int64
	var visit func(int64)
	visit = func(n int64) {
		for _, c := range t.children[n] {
			out = append(out, c)
			visit(c)
		}
	}
	visit(id)
	return out
}
