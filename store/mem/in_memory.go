package mem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warriorguo/graphflow/store"
)

var (
	_ store.Store = &memStore{}
)

func NewMemStore() store.Store {
	return &memStore{
		m: make(map[string]map[string][]byte),
		// setup no error as default
		mockErrHandler: defaultNoErr,
	}
}

// NewMemStoreWithErrHandler returns a store whose every operation also
// returns what errHandler returns, for fault injection in tests.
func NewMemStoreWithErrHandler(errHandler func() error) store.Store {
	return &memStore{
		m:              make(map[string]map[string][]byte),
		mockErrHandler: errHandler,
	}
}

func defaultNoErr() error {
	return nil
}

/**
 * memStore keeps values in process memory, grouped by prefix.
 * Values are copied on the way in and out so callers may reuse their buffers.
 * It is meant for tests and single process setups, the data is gone on exit.
 */
type memStore struct {
	mu sync.RWMutex

	mockErrHandler func() error

	m map[string]map[string][]byte
}

func (m *memStore) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefixes := make([]string, 0, len(m.m))
	for prefix := range m.m {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	sb := &strings.Builder{}
	sb.WriteString("\n----------\n")
	for _, prefix := range prefixes {
		for _, key := range sortedKeys(m.m[prefix]) {
			fmt.Fprintf(sb, "%s|%s: %s\n", prefix, key, string(m.m[prefix][key]))
		}
	}
	sb.WriteString("----------\n")
	return sb.String()
}

func (m *memStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.mockErrHandler(); err != nil {
		return nil, err
	}
	value, exists := m.m[prefix][key]
	if !exists {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (m *memStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mockErrHandler(); err != nil {
		return err
	}
	bucket, exists := m.m[prefix]
	if !exists {
		bucket = make(map[string][]byte)
		m.m[prefix] = bucket
	}
	bucket[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Remove(ctx context.Context, prefix, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mockErrHandler(); err != nil {
		return err
	}
	bucket, exists := m.m[prefix]
	if !exists {
		return nil
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(m.m, prefix)
	}
	return nil
}

// List walks the keys of prefix in sorted order. The iterator runs without
// the lock held, so it may call back into the store.
func (m *memStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	m.mu.RLock()
	if err := m.mockErrHandler(); err != nil {
		m.mu.RUnlock()
		return err
	}
	keys := sortedKeys(m.m[prefix])
	m.mu.RUnlock()

	for _, key := range keys {
		if !iterator(key) {
			break
		}
	}
	return nil
}

func sortedKeys(bucket map[string][]byte) []string {
	keys := make([]string, 0, len(bucket))
	for key := range bucket {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
