package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vskvj3/blockdeque/internal/datastructures"
)

var (
	ErrEmptyKey    = errors.New("key cannot be empty")
	ErrEmptyValue  = errors.New("value cannot be empty")
	ErrKeyNotFound = errors.New("key not found")
)

// Database maps keys to lists. Each list is a block-chain deque; the
// database lock serializes every access to them.
type Database struct {
	mu        sync.Mutex
	lists     map[string]*datastructures.Deque[string]
	expiry    map[string]int64
	blockSize int
}

// NewDatabase creates a database whose lists use the default block size.
func NewDatabase() *Database {
	return NewDatabaseWithBlockSize(datastructures.DefaultBlockSize)
}

// NewDatabaseWithBlockSize creates a database whose lists use blocks of
// blockSize elements.
func NewDatabaseWithBlockSize(blockSize int) *Database {
	return &Database{
		lists:     make(map[string]*datastructures.Deque[string]),
		expiry:    make(map[string]int64),
		blockSize: blockSize,
	}
}

// list returns the live list at key, dropping it first if it expired.
// Callers hold db.mu.
func (db *Database) list(key string) (*datastructures.Deque[string], bool) {
	if exp, ok := db.expiry[key]; ok && time.Now().UnixMilli() > exp {
		delete(db.lists, key)
		delete(db.expiry, key)
		return nil, false
	}
	l, ok := db.lists[key]
	return l, ok
}

// dropIfEmpty removes key once its list has no elements.
func (db *Database) dropIfEmpty(key string, l *datastructures.Deque[string]) {
	if l.Empty() {
		delete(db.lists, key)
		delete(db.expiry, key)
	}
}

func (db *Database) listOrCreate(key string) *datastructures.Deque[string] {
	if l, ok := db.list(key); ok {
		return l
	}
	l := datastructures.NewDequeSize[string](db.blockSize)
	db.lists[key] = l
	return l
}

func validate(key string, values []string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(values) == 0 {
		return ErrEmptyValue
	}
	for _, v := range values {
		if v == "" {
			return ErrEmptyValue
		}
	}
	return nil
}

// LPush prepends values one at a time, so the last value ends up first.
// It returns the new length.
func (db *Database) LPush(key string, values ...string) (int, error) {
	if err := validate(key, values); err != nil {
		return 0, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l := db.listOrCreate(key)
	for _, v := range values {
		l.PushFront(v)
	}
	return l.Len(), nil
}

// RPush appends values and returns the new length.
func (db *Database) RPush(key string, values ...string) (int, error) {
	if err := validate(key, values); err != nil {
		return 0, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l := db.listOrCreate(key)
	for _, v := range values {
		l.PushBack(v)
	}
	return l.Len(), nil
}

// LPop removes and returns the first element of the list at key.
func (db *Database) LPop(key string) (string, error) {
	return db.pop(key, (*datastructures.Deque[string]).PopFront)
}

// RPop removes and returns the last element of the list at key.
func (db *Database) RPop(key string) (string, error) {
	return db.pop(key, (*datastructures.Deque[string]).PopBack)
}

func (db *Database) pop(key string, popFn func(*datastructures.Deque[string]) (string, error)) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	value, err := popFn(l)
	if err != nil {
		return "", err
	}
	db.dropIfEmpty(key, l)
	return value, nil
}

// normalizeIndex maps a negative index to a position counted from the end.
func normalizeIndex(index, length int) int {
	if index < 0 {
		return length + index
	}
	return index
}

// LIndex returns the element at index; negative indexes count from the end.
func (db *Database) LIndex(key string, index int) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return l.At(normalizeIndex(index, l.Len()))
}

// LSet overwrites the element at index.
func (db *Database) LSet(key string, index int, value string) error {
	if value == "" {
		return ErrEmptyValue
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return ErrKeyNotFound
	}
	return l.Set(normalizeIndex(index, l.Len()), value)
}

// LInsert puts value before (or after) the first element equal to pivot.
// It returns the new length, -1 when pivot is absent, or 0 when the key
// does not exist.
func (db *Database) LInsert(key string, before bool, pivot, value string) (int, error) {
	if err := validate(key, []string{value}); err != nil {
		return 0, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return 0, nil
	}

	for it := l.Begin(); !it.IsEnd(); {
		v, err := it.Value()
		if err != nil {
			return 0, err
		}
		if v != pivot {
			if it, err = it.Next(); err != nil {
				return 0, err
			}
			continue
		}
		if !before {
			if it, err = it.Next(); err != nil {
				return 0, err
			}
		}
		if _, err := l.Insert(it, value); err != nil {
			return 0, err
		}
		return l.Len(), nil
	}
	return -1, nil
}

// LInsertAt inserts value so that it ends up at index. index may equal the
// length to append, and negative indexes count from the end. A missing key
// is created when index is 0. It returns the new length.
func (db *Database) LInsertAt(key string, index int, value string) (int, error) {
	if err := validate(key, []string{value}); err != nil {
		return 0, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		if index != 0 {
			return 0, ErrKeyNotFound
		}
		l = db.listOrCreate(key)
	}
	if index < 0 {
		index += l.Len()
	}
	if err := l.InsertAt(index, value); err != nil {
		db.dropIfEmpty(key, l)
		return 0, err
	}
	return l.Len(), nil
}

// LRemAt removes and returns the element at index.
func (db *Database) LRemAt(key string, index int) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	value, err := l.EraseAt(normalizeIndex(index, l.Len()))
	if err != nil {
		return "", err
	}
	db.dropIfEmpty(key, l)
	return value, nil
}

// LRem removes elements equal to value: the first count from the head when
// count > 0, the last -count from the tail when count < 0, all of them when
// count == 0. It returns how many were removed.
func (db *Database) LRem(key string, count int, value string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return 0, nil
	}

	removed := 0
	var err error
	if count >= 0 {
		it := l.Begin()
		for !it.IsEnd() && (count == 0 || removed < count) {
			var v string
			if v, err = it.Value(); err != nil {
				return removed, err
			}
			if v == value {
				it, err = l.Erase(it)
				removed++
			} else {
				it, err = it.Next()
			}
			if err != nil {
				return removed, err
			}
		}
	} else {
		it := l.End()
		for removed < -count && !it.Equal(l.Begin()) {
			if it, err = it.Prev(); err != nil {
				return removed, err
			}
			var v string
			if v, err = it.Value(); err != nil {
				return removed, err
			}
			if v == value {
				if it, err = l.Erase(it); err != nil {
					return removed, err
				}
				removed++
			}
		}
	}
	db.dropIfEmpty(key, l)
	return removed, nil
}

// LLen returns the list length, 0 for a missing key.
func (db *Database) LLen(key string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return 0
	}
	return l.Len()
}

// clampRange turns inclusive start/stop (negative from the end) into a
// half-open [from, to) window inside a list of length n.
func clampRange(start, stop, n int) (int, int) {
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return 0, 0
	}
	return start, stop + 1
}

// LRange returns the elements between start and stop inclusive.
func (db *Database) LRange(key string, start, stop int) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return []string{}, nil
	}
	from, to := clampRange(start, stop, l.Len())
	out := make([]string, 0, to-from)
	if from == to {
		return out, nil
	}

	it, err := l.Begin().Add(from)
	if err != nil {
		return nil, err
	}
	for i := from; i < to; i++ {
		v, err := it.Value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if it, err = it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LTrim keeps only the elements between start and stop inclusive.
func (db *Database) LTrim(key string, start, stop int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.list(key)
	if !ok {
		return nil
	}
	from, to := clampRange(start, stop, l.Len())
	if from == to {
		l.Clear()
	} else {
		for l.Len() > to {
			if _, err := l.PopBack(); err != nil {
				return err
			}
		}
		for i := 0; i < from; i++ {
			if _, err := l.PopFront(); err != nil {
				return err
			}
		}
	}
	db.dropIfEmpty(key, l)
	return nil
}

// Del removes keys and returns how many existed.
func (db *Database) Del(keys ...string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, key := range keys {
		if _, ok := db.list(key); ok {
			n++
		}
		delete(db.lists, key)
		delete(db.expiry, key)
	}
	return n
}

// Exists reports whether key holds a list.
func (db *Database) Exists(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.list(key)
	return ok
}

// Keys returns every live key in sorted order.
func (db *Database) Keys() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	keys := make([]string, 0, len(db.lists))
	for key := range db.lists {
		if _, ok := db.list(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Expire sets a time to live on key. A non-positive ttl removes it.
func (db *Database) Expire(key string, ttlMs int64) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.list(key); !ok {
		return false, nil
	}
	if ttlMs <= 0 {
		delete(db.expiry, key)
		return true, nil
	}
	db.expiry[key] = time.Now().UnixMilli() + ttlMs
	return true, nil
}

// ExpireAt sets key to expire at deadline, in Unix milliseconds. A deadline
// already in the past removes the key on its next access.
func (db *Database) ExpireAt(key string, deadline int64) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.list(key); !ok {
		return false, nil
	}
	db.expiry[key] = deadline
	return true, nil
}

// ListSnapshot is a copy of one list. TTL is the remaining lifetime in
// milliseconds, 0 when the key does not expire.
type ListSnapshot struct {
	Values []string
	TTL    int64
}

// Snapshot copies every live list and its remaining TTL.
func (db *Database) Snapshot() map[string]ListSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := time.Now().UnixMilli()
	out := make(map[string]ListSnapshot, len(db.lists))
	for key := range db.lists {
		l, ok := db.list(key)
		if !ok {
			continue
		}
		snap := ListSnapshot{Values: l.Values()}
		if exp, ok := db.expiry[key]; ok {
			// list() already dropped keys past their deadline.
			snap.TTL = max(exp-now, 1)
		}
		out[key] = snap
	}
	return out
}

// Restore replaces the whole keyspace with snapshot. TTLs count from now.
func (db *Database) Restore(snapshot map[string]ListSnapshot) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := time.Now().UnixMilli()
	lists := make(map[string]*datastructures.Deque[string], len(snapshot))
	expiry := make(map[string]int64)
	for key, snap := range snapshot {
		if err := validate(key, snap.Values); err != nil {
			return fmt.Errorf("restore %q: %w", key, err)
		}
		if snap.TTL < 0 {
			return fmt.Errorf("restore %q: negative TTL %d", key, snap.TTL)
		}
		l := datastructures.NewDequeSize[string](db.blockSize)
		for _, v := range snap.Values {
			l.PushBack(v)
		}
		lists[key] = l
		if snap.TTL > 0 {
			expiry[key] = now + snap.TTL
		}
	}
	db.lists = lists
	db.expiry = expiry
	return nil
}

// StartCleanup removes expired keys every interval until ctx is done.
func (db *Database) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			db.mu.Lock()
			now := time.Now().UnixMilli()
			for key, expiry := range db.expiry {
				if now > expiry {
					delete(db.lists, key)
					delete(db.expiry, key)
				}
			}
			db.mu.Unlock()
		}
	}()
}
