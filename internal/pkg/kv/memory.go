package kv

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local development.
// Expiry is evaluated lazily on access.
type MemoryStore struct {
	mu        sync.Mutex
	values    map[string]string
	lists     map[string][]string
	deadlines map[string]time.Time
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:    make(map[string]string),
		lists:     make(map[string][]string),
		deadlines: make(map[string]time.Time),
		now:       time.Now,
	}
}

// TTL reports the remaining lifetime of a key, zero when none is set. Test
// helper; not part of the Store interface.
func (s *MemoryStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.deadlines[key]
	if !ok {
		return 0
	}
	return deadline.Sub(s.now())
}

func (s *MemoryStore) reap(key string) {
	deadline, ok := s.deadlines[key]
	if !ok || s.now().Before(deadline) {
		return
	}
	delete(s.values, key)
	delete(s.lists, key)
	delete(s.deadlines, key)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	val, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	if ttl > 0 {
		s.deadlines[key] = s.now().Add(ttl)
	} else {
		delete(s.deadlines, key)
	}
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value
	if ttl > 0 {
		s.deadlines[key] = s.now().Add(ttl)
	}
	return true, nil
}

func (s *MemoryStore) SetMulti(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.values[k] = v
		delete(s.deadlines, k)
	}
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
		delete(s.lists, k)
		delete(s.deadlines, k)
	}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	n, _ := strconv.ParseInt(s.values[key], 10, 64)
	n++
	s.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasValue := s.values[key]
	_, hasList := s.lists[key]
	if hasValue || hasList {
		s.deadlines[key] = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) LPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	for _, v := range values {
		s.lists[key] = append([]string{v}, s.lists[key]...)
	}
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (s *MemoryStore) LLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	return int64(len(s.lists[key])), nil
}

func (s *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	kept, err := s.LRange(context.Background(), key, start, stop)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = kept
	return nil
}

func (s *MemoryStore) Scan(_ context.Context, match string, _ int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.values {
		if ok, _ := path.Match(match, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
