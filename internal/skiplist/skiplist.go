// Package skiplist implements the in-memory probabilistic ordered map from
// fixed-width keys to RIDs described by original_source/Index/skiplist.h
// (the shipped .cc is an unfinished course assignment stub — Update,
// Delete, and ForwardScan are TODOs there, and Traverse's predecessor
// bookkeeping is half-commented-out) so the traversal/insert/latching
// algorithm here follows the surrounding engine's written contract instead
// of the stub's control flow. Node towers are plain Go slices rather than
// the source's flexible-array-member struct plus raw next[] pointer web,
// per the source's own note that the pointer web needs re-architecting in
// a systems language with a real memory model.
package skiplist

import (
	"bytes"
	"math/rand/v2"
	"sync"

	"github.com/tuannm99/yase/internal/yid"
)

// MaxLevel bounds tower height, matching the source's SKIP_LIST_MAX_LEVEL.
const MaxLevel = 16

type node struct {
	key  []byte
	rid  yid.RID
	next []*node // len(next) == this node's tower height
}

// ScanResult is one (key, rid) pair returned by ForwardScan. Key is a
// private copy; the caller owns it and may hold onto or mutate it freely.
type ScanResult struct {
	Key []byte
	RID yid.RID
}

// SkipList maps fixed-size keys to RIDs with O(log n) expected-time
// Search/Insert/Delete and ordered ForwardScan.
type SkipList struct {
	keySize int
	head    *node
	tail    *node
	height  int // current max tower height in use, 1..MaxLevel

	// locks[i] guards level i's forward pointers. Acquired in ascending
	// level order by every operation, released in descending order once
	// it completes; see the per-operation lock ranges in lockRange's callers.
	locks [MaxLevel]sync.RWMutex
}

// New constructs an empty skip list over keySize-byte keys.
func New(keySize int) *SkipList {
	head := &node{next: make([]*node, MaxLevel)}
	tail := &node{next: nil}
	for i := 0; i < MaxLevel; i++ {
		head.next[i] = tail
	}
	return &SkipList{keySize: keySize, head: head, tail: tail, height: 1}
}

func (s *SkipList) lockRange(writeUpTo int) func() {
	unlock := make([]func(), MaxLevel)
	for i := 0; i < MaxLevel; i++ {
		if i < writeUpTo {
			s.locks[i].Lock()
			unlock[i] = s.locks[i].Unlock
		} else {
			s.locks[i].RLock()
			unlock[i] = s.locks[i].RUnlock
		}
	}
	return func() {
		for i := MaxLevel - 1; i >= 0; i-- {
			unlock[i]()
		}
	}
}

// randomHeight picks a tower height by repeated fair coin flips: start at
// 1, keep incrementing on heads, stop on tails or MaxLevel.
func randomHeight() int {
	h := 1
	for h < MaxLevel && rand.IntN(2) == 1 {
		h++
	}
	return h
}

// traverse walks from the head at level MaxLevel-1 down to level 0,
// returning the node whose key equals key (or nil) and, if collectPreds,
// the per-level predecessor of the insert/delete point in descending
// level order — preds[len(preds)-1] is always the level-0 predecessor, so
// callers pop from the back first, matching Insert/Delete's level-0-first
// splice order.
func (s *SkipList) traverse(key []byte, collectPreds bool) (found *node, preds []*node) {
	if collectPreds {
		preds = make([]*node, 0, MaxLevel)
	}
	cur := s.head
	for level := MaxLevel - 1; level >= 0; level-- {
		for cur.next[level] != s.tail && bytes.Compare(cur.next[level].key, key) < 0 {
			cur = cur.next[level]
		}
		if collectPreds {
			preds = append(preds, cur)
		}
	}
	if next := cur.next[0]; next != s.tail && bytes.Equal(next.key, key) {
		found = next
	}
	return found, preds
}

// Traverse exposes the raw search primitive: a pointer to a copy of the RID
// stored for key, or nil if key is absent. Takes every level's read latch for the duration.
func (s *SkipList) Traverse(key []byte) *yid.RID {
	unlock := s.lockRange(0)
	defer unlock()
	found, _ := s.traverse(key, false)
	if found == nil {
		return nil
	}
	rid := found.rid
	return &rid
}

// Insert adds key -> rid. Returns false if key is already present.
func (s *SkipList) Insert(key []byte, rid yid.RID) bool {
	height := randomHeight()
	unlock := s.lockRange(height)
	defer unlock()

	found, preds := s.traverse(key, true)
	if found != nil {
		return false
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	n := &node{key: keyCopy, rid: rid, next: make([]*node, height)}

	for i := 0; i < height; i++ {
		pred := preds[len(preds)-1-i] // preds back-to-front == level 0 upward
		n.next[i] = pred.next[i]
		pred.next[i] = n
	}
	if height > s.height {
		s.height = height
	}
	return true
}

// Search returns the RID stored for key, or yid.InvalidRID if absent.
func (s *SkipList) Search(key []byte) yid.RID {
	unlock := s.lockRange(0)
	defer unlock()
	found, _ := s.traverse(key, false)
	if found == nil {
		return yid.InvalidRID
	}
	return found.rid
}

// Update overwrites the RID stored for key. Returns false if key is absent.
func (s *SkipList) Update(key []byte, rid yid.RID) bool {
	unlock := s.lockRange(1)
	defer unlock()
	found, _ := s.traverse(key, false)
	if found == nil {
		return false
	}
	found.rid = rid
	return true
}

// Delete removes key. Returns false if key is absent.
func (s *SkipList) Delete(key []byte) bool {
	unlock := s.lockRange(MaxLevel)
	defer unlock()

	found, preds := s.traverse(key, true)
	if found == nil {
		return false
	}
	for i := 0; i < len(found.next); i++ {
		pred := preds[len(preds)-1-i]
		pred.next[i] = found.next[i]
	}
	return true
}

// ForwardScan appends up to nkeys (key, rid) pairs starting at start_key
// (nil means the first real node after head) in ascending key order to
// out, which must be non-nil. If inclusive is false and a node with key
// exactly equal to startKey exists, it is skipped.
func (s *SkipList) ForwardScan(startKey []byte, nkeys int, inclusive bool, out *[]ScanResult) {
	if out == nil || nkeys == 0 {
		return
	}
	unlock := s.lockRange(0)
	defer unlock()

	cur := s.seekGE(startKey)
	if !inclusive && startKey != nil && cur != s.tail && bytes.Equal(cur.key, startKey) {
		cur = cur.next[0]
	}

	for copied := 0; cur != s.tail && copied < nkeys; copied++ {
		keyCopy := make([]byte, len(cur.key))
		copy(keyCopy, cur.key)
		*out = append(*out, ScanResult{Key: keyCopy, RID: cur.rid})
		cur = cur.next[0]
	}
}

// seekGE returns the first node with key >= target (nil target means
// negative infinity, i.e. the first real node), or tail if none.
func (s *SkipList) seekGE(target []byte) *node {
	cur := s.head
	if target == nil {
		return cur.next[0]
	}
	for level := MaxLevel - 1; level >= 0; level-- {
		for cur.next[level] != s.tail && bytes.Compare(cur.next[level].key, target) < 0 {
			cur = cur.next[level]
		}
	}
	return cur.next[0]
}

// Height returns the current maximum tower height in use.
func (s *SkipList) Height() int { return s.height }
