package filestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process FileStore for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	folders map[string]bool
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		folders: make(map[string]bool),
	}
}

func (m *MemoryStore) EnsureFolder(_ context.Context, path string) (string, error) {
	path = strings.Trim(path, "/")
	m.mu.Lock()
	m.folders[path] = true
	m.mu.Unlock()
	return path, nil
}

func (m *MemoryStore) Upload(_ context.Context, folder, filename string, content []byte, _ string) (string, error) {
	key := strings.Trim(folder, "/") + "/" + filename
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), content...)
	m.folders[strings.Trim(folder, "/")] = true
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStore) List(_ context.Context, folder string) ([]ObjectInfo, error) {
	prefix := strings.Trim(folder, "/") + "/"
	m.mu.Lock()
	defer m.mu.Unlock()
	var objects []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *MemoryStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q does not exist", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("object %q does not exist", key)
	}
	delete(m.objects, key)
	return nil
}

// Exists reports whether a key is present; test helper.
func (m *MemoryStore) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
