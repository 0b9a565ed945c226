package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store. It backs tests and single-node
// deployments; the Redis store is the multi-node backend.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]any // docKey -> decoded JSON tree
	subs map[string]map[*subscriber]struct{}

	cleanupMu sync.Mutex
	cleanups  map[string][]string // connID -> paths to delete
}

type subscriber struct {
	path string

	mu      sync.Mutex
	pending []byte
	has     bool
	closed  bool
	signal  chan struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]any),
		subs:     make(map[string]map[*subscriber]struct{}),
		cleanups: make(map[string][]string),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}
	jv, err := toJSONValue(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if len(inner) == 0 {
		m.docs[docKey] = jv
	} else {
		m.docs[docKey] = setAt(m.docs[docKey], inner, jv)
	}
	m.notifyLocked(docKey)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}
	jf, err := jsonFieldsValue(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.docs[docKey] = mergeAt(m.docs[docKey], inner, jf)
	m.notifyLocked(docKey)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReadOnce(ctx context.Context, path string, dest any) error {
	raw, err := m.rawAt(path)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrAbsent
	}
	return json.Unmarshal(raw, dest)
}

func (m *Memory) rawAt(path string) ([]byte, error) {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docKey]
	if !ok {
		return nil, nil
	}
	v, ok := valueAt(doc, inner)
	if !ok || v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (m *Memory) Subscribe(path string, fn func(data []byte)) func() {
	docKey, inner, err := splitPath(path)
	if err != nil {
		// Malformed subscription path; deliver a single absent snapshot.
		fn(nil)
		return func() {}
	}

	sub := &subscriber{path: path, signal: make(chan struct{}, 1)}

	m.mu.Lock()
	if m.subs[docKey] == nil {
		m.subs[docKey] = make(map[*subscriber]struct{})
	}
	m.subs[docKey][sub] = struct{}{}
	var initial []byte
	if doc, ok := m.docs[docKey]; ok {
		if v, ok := valueAt(doc, inner); ok && v != nil {
			initial, _ = json.Marshal(v)
		}
	}
	sub.push(initial)
	m.mu.Unlock()

	go sub.run(fn)

	return func() {
		m.mu.Lock()
		delete(m.subs[docKey], sub)
		if len(m.subs[docKey]) == 0 {
			delete(m.subs, docKey)
		}
		m.mu.Unlock()
		sub.close()
	}
}

// notifyLocked pushes the current value at each subscriber's path.
// Caller holds m.mu.
func (m *Memory) notifyLocked(docKey string) {
	subs := m.subs[docKey]
	if len(subs) == 0 {
		return
	}
	doc, exists := m.docs[docKey]
	for sub := range subs {
		var data []byte
		if exists {
			_, inner, _ := splitPath(sub.path)
			if v, ok := valueAt(doc, inner); ok && v != nil {
				data, _ = json.Marshal(v)
			}
		}
		sub.push(data)
	}
}

func (m *Memory) QueryByField(ctx context.Context, collection, field string, value any) ([][]byte, error) {
	want, err := toJSONValue(value)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out [][]byte
	prefix := collection + "/"
	for key, doc := range m.docs {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		obj, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		if obj[field] == want {
			raw, _ := json.Marshal(obj)
			out = append(out, raw)
		}
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	docKey, inner, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if len(inner) == 0 {
		delete(m.docs, docKey)
	} else if doc, ok := m.docs[docKey]; ok {
		m.docs[docKey] = deleteAt(doc, inner)
	}
	m.notifyLocked(docKey)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ArmOnDisconnect(connID, path string) {
	m.cleanupMu.Lock()
	m.cleanups[connID] = append(m.cleanups[connID], path)
	m.cleanupMu.Unlock()
}

func (m *Memory) DisarmOnDisconnect(connID string) {
	m.cleanupMu.Lock()
	delete(m.cleanups, connID)
	m.cleanupMu.Unlock()
}

func (m *Memory) FireDisconnect(connID string) {
	m.cleanupMu.Lock()
	paths := m.cleanups[connID]
	delete(m.cleanups, connID)
	m.cleanupMu.Unlock()

	for _, p := range paths {
		_ = m.Delete(context.Background(), p)
	}
}

// push replaces any undelivered snapshot; subscribers always converge on
// the latest value rather than replaying every intermediate write.
func (s *subscriber) push(data []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = data
	s.has = true
	select {
	case s.signal <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

func (s *subscriber) run(fn func(data []byte)) {
	for range s.signal {
		for {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			if !s.has {
				s.mu.Unlock()
				break
			}
			data := s.pending
			s.has = false
			s.mu.Unlock()
			fn(data)
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.signal)
}
