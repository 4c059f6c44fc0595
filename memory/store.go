package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/internal/stringutils"
)

type (
	// Store keeps one ordered list of records per agent, newest first.
	Store interface {
		List(ctx context.Context, agentName string) ([]Record, error)
		// Add stores content unless a record with the same content (ignoring
		// case) exists, in which case that record is returned and added is false.
		Add(ctx context.Context, agentName, content string) (record Record, added bool, err error)
		Delete(ctx context.Context, agentName, id string) error
		Clear(ctx context.Context, agentName string) error
		// Reconcile makes the stored contents equal to contents, keeping the
		// id and timestamp of records that survive.
		Reconcile(ctx context.Context, agentName string, contents []string) error
		// Migrate moves every record of oldName under newName. On equal
		// content the record already under newName wins.
		Migrate(ctx context.Context, oldName, newName string) error
		// Import adds one record per non-empty line and reports how many were new.
		Import(ctx context.Context, agentName, text string) (int, error)
	}

	NamespacedStore struct {
		kv     KV
		logger *slog.Logger

		mu    sync.Mutex
		locks map[string]*sync.Mutex
	}
)

var _ Store = (*NamespacedStore)(nil)

func NewStore(kv KV, logger *slog.Logger) *NamespacedStore {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &NamespacedStore{
		kv:     kv,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *NamespacedStore) lock(keys ...string) func() {
	sort.Strings(keys)

	var held []*sync.Mutex
	for i, key := range keys {
		if i > 0 && keys[i-1] == key {
			continue
		}
		s.mu.Lock()
		l, ok := s.locks[key]
		if !ok {
			l = &sync.Mutex{}
			s.locks[key] = l
		}
		s.mu.Unlock()

		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// read treats a missing key as empty and resets a corrupt one.
func (s *NamespacedStore) read(ctx context.Context, key string) ([]Record, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil || records == nil {
		s.logger.Warn("reset corrupt memory namespace", slog.String("namespace", key), slog.Any("error", err))
		if err := s.write(ctx, key, []Record{}); err != nil {
			s.logger.Warn("failed to reset memory namespace", slog.String("namespace", key), slog.Any("error", err))
		}
		return []Record{}, nil
	}
	return records, nil
}

func (s *NamespacedStore) write(ctx context.Context, key string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal records")
	}
	return s.kv.Put(ctx, key, raw)
}

func (s *NamespacedStore) List(ctx context.Context, agentName string) ([]Record, error) {
	key := NamespaceKey(agentName)
	defer s.lock(key)()

	records, err := s.read(ctx, key)
	return records, errors.NewOpError("list", key, err)
}

func (s *NamespacedStore) Add(ctx context.Context, agentName, content string) (Record, bool, error) {
	key := NamespaceKey(agentName)
	content = strings.TrimSpace(stringutils.SanitizeUnicodeString(content))
	if content == "" {
		return Record{}, false, errors.NewOpError("add", key, errors.ErrInvalidParams)
	}

	defer s.lock(key)()

	records, err := s.read(ctx, key)
	if err != nil {
		return Record{}, false, errors.NewOpError("add", key, err)
	}
	for _, r := range records {
		if strings.EqualFold(r.Content, content) {
			return r, false, nil
		}
	}

	record := newRecord(content)
	if err := s.write(ctx, key, append([]Record{record}, records...)); err != nil {
		return Record{}, false, errors.NewOpError("add", key, err)
	}
	return record, true, nil
}

func (s *NamespacedStore) Delete(ctx context.Context, agentName, id string) error {
	key := NamespaceKey(agentName)
	defer s.lock(key)()

	records, err := s.read(ctx, key)
	if err != nil {
		return errors.NewOpError("delete", key, err)
	}

	kept := records[:0]
	found := false
	for _, r := range records {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return errors.NewOpError("delete", key, errors.Wrapf(errors.ErrNotFound, "memory %s", id))
	}
	return errors.NewOpError("delete", key, s.write(ctx, key, kept))
}

func (s *NamespacedStore) Clear(ctx context.Context, agentName string) error {
	key := NamespaceKey(agentName)
	defer s.lock(key)()

	return errors.NewOpError("clear", key, s.write(ctx, key, []Record{}))
}

func (s *NamespacedStore) Reconcile(ctx context.Context, agentName string, contents []string) error {
	key := NamespaceKey(agentName)
	defer s.lock(key)()

	records, err := s.read(ctx, key)
	if err != nil {
		return errors.NewOpError("reconcile", key, err)
	}

	wanted := make(map[string]struct{}, len(contents))
	for _, c := range contents {
		wanted[c] = struct{}{}
	}

	present := make(map[string]struct{}, len(records))
	synced := make([]Record, 0, len(contents))
	for _, r := range records {
		if _, ok := wanted[r.Content]; !ok {
			continue
		}
		if _, dup := present[r.Content]; dup {
			continue
		}
		present[r.Content] = struct{}{}
		synced = append(synced, r)
	}
	for _, c := range contents {
		if _, ok := present[c]; ok {
			continue
		}
		present[c] = struct{}{}
		synced = append([]Record{newRecord(c)}, synced...)
	}

	return errors.NewOpError("reconcile", key, s.write(ctx, key, synced))
}

func (s *NamespacedStore) Migrate(ctx context.Context, oldName, newName string) error {
	oldKey, newKey := NamespaceKey(oldName), NamespaceKey(newName)
	if oldKey == newKey {
		return nil
	}
	defer s.lock(oldKey, newKey)()

	return atomically(ctx, s.kv, func(ctx context.Context) error {
		oldRecords, err := s.read(ctx, oldKey)
		if err != nil {
			return errors.NewOpError("migrate", oldKey, err)
		}
		newRecords, err := s.read(ctx, newKey)
		if err != nil {
			return errors.NewOpError("migrate", newKey, err)
		}

		index := map[string]int{}
		merged := make([]Record, 0, len(oldRecords)+len(newRecords))
		for _, r := range append(oldRecords, newRecords...) {
			if i, ok := index[r.Content]; ok {
				merged[i] = r
				continue
			}
			index[r.Content] = len(merged)
			merged = append(merged, r)
		}

		if err := s.write(ctx, newKey, merged); err != nil {
			return errors.NewOpError("migrate", newKey, err)
		}
		return errors.NewOpError("migrate", oldKey, s.kv.Delete(ctx, oldKey))
	})
}

func (s *NamespacedStore) Import(ctx context.Context, agentName, text string) (int, error) {
	added := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		_, ok, err := s.Add(ctx, agentName, line)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
