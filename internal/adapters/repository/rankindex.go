package repository

import (
	"math/rand/v2"
)

// Treap-based account ordering.
//
// Ordering: rank DESC, then display name ASC, then id ASC. "less" means
// listed earlier, so in-order traversal yields the leaderboard best first.

type rankKey struct {
	rank int64
	name string
	id   string
}

func (a rankKey) less(b rankKey) bool {
	if a.rank != b.rank {
		return a.rank > b.rank
	}
	if a.name != b.name {
		return a.name < b.name
	}
	return a.id < b.id
}

type node struct {
	key   rankKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k rankKey, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if k.less(n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k rankKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.key == k:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case k.less(n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit account ids in leaderboard order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// rankIndex orders accounts for the leaderboard. Not safe for concurrent
// use; the owning store serializes access.
type rankIndex struct {
	root *node
	keys map[string]rankKey
}

func newRankIndex() *rankIndex {
	return &rankIndex{keys: make(map[string]rankKey)}
}

// upsert places id at its new position, removing the old one first.
func (r *rankIndex) upsert(id, name string, rank int64) {
	if old, ok := r.keys[id]; ok {
		r.root = deleteNode(r.root, old)
	}
	k := rankKey{rank: rank, name: name, id: id}
	r.keys[id] = k
	r.root = insert(r.root, k, rand.Uint64())
}

func (r *rankIndex) top(n int) []string {
	out := make([]string, 0, min(n, nsize(r.root)))
	collectTopN(r.root, n, &out)
	return out
}

func (r *rankIndex) size() int { return nsize(r.root) }
