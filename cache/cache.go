// Package cache — слой инвалидации страниц/ответов. Для логики составов
// это внешний коллаборатор: провал инвалидации не фатален (только риск
// устаревшего чтения), поэтому интерфейс не возвращает ошибок.
package cache

import "sync"

type Invalidator interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, tags ...string)
	Delete(key string)
	// InvalidateTag удаляет все ключи, помеченные тегом
	// (например "match:42" после мутации состава).
	InvalidateTag(tag string)
}

// Memory — процессная реализация с тегами. Одного инстанса за процессом
// достаточно: внешнего кэш-сервиса в этом деплое нет.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	tags    map[string]map[string]struct{}
	keyTags map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	return value, ok
}

func (m *Memory) Set(key string, value []byte, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	m.entries[key] = value
	m.keyTags[key] = tags
	for _, tag := range tags {
		if m.tags[tag] == nil {
			m.tags[tag] = make(map[string]struct{})
		}
		m.tags[tag][key] = struct{}{}
	}
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
}

func (m *Memory) InvalidateTag(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.tags[tag] {
		m.removeLocked(key)
	}
	delete(m.tags, tag)
}

func (m *Memory) removeLocked(key string) {
	delete(m.entries, key)
	for _, tag := range m.keyTags[key] {
		if keys, ok := m.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.tags, tag)
			}
		}
	}
	delete(m.keyTags, key)
}
