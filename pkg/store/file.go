package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentstation/civicmap/internal/atomicfile"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/logging"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps one JSON array file per type partition and rewrites the
// full snapshot on every mutating call. With WithInMemory it neither reads
// nor writes snapshot files.
type FileStore struct {
	mu         sync.Mutex
	dir        string
	inMemory   bool
	partitions map[entities.Type][]entities.Entity
}

// OpenFile opens a JSON snapshot store rooted at dir.
func OpenFile(dir string, opts ...Option) (*FileStore, error) {
	o := defaultOptions().apply(opts...)
	if dir == "" && !o.inMemory {
		return nil, errors.NewConfigError("store", "data directory is required", nil)
	}
	return &FileStore{
		dir:        dir,
		inMemory:   o.inMemory,
		partitions: make(map[entities.Type][]entities.Entity),
	}, nil
}

// Path returns the snapshot file of a type partition.
func (s *FileStore) Path(typ entities.Type) string {
	return filepath.Join(s.dir, partitionName(typ)+".json")
}

// load returns the partition, reading it from disk the first time.
// Callers must hold the lock.
func (s *FileStore) load(typ entities.Type) ([]entities.Entity, error) {
	if list, ok := s.partitions[typ]; ok {
		return list, nil
	}
	if s.inMemory {
		s.partitions[typ] = nil
		return nil, nil
	}

	path := s.Path(typ)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.partitions[typ] = nil
		return nil, nil
	case err != nil:
		return nil, errors.WrapIO("read", path, err)
	}

	var list []entities.Entity
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, errors.WrapParse("json", path, err)
		}
	}
	s.partitions[typ] = list

	logging.Debug().
		Str("path", path).
		Int("entities", len(list)).
		Msg("Loaded entity partition")
	return list, nil
}

// save writes a partition snapshot. Callers must hold the write lock.
func (s *FileStore) save(typ entities.Type, list []entities.Entity) error {
	if list == nil {
		list = []entities.Entity{}
	}
	if s.inMemory {
		s.partitions[typ] = list
		return nil
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errors.WrapParse("json", s.Path(typ), err)
	}
	if err := atomicfile.Write(s.Path(typ), data); err != nil {
		return err
	}
	s.partitions[typ] = list
	return nil
}

// List implements Store.
func (s *FileStore) List(typ entities.Type, city string) ([]entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(typ)
	if err != nil {
		return nil, err
	}
	return cloneAll(filterCity(list, city)), nil
}

// Get implements Store.
func (s *FileStore) Get(typ entities.Type, id string) (entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(typ)
	if err != nil {
		return entities.Entity{}, err
	}
	for _, e := range list {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return entities.Entity{}, errors.NewNotFoundError("entity", id)
}

// Add implements Store.
func (s *FileStore) Add(e entities.Entity) error {
	if err := validate(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(e.Type)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.ID == e.ID {
			return errors.WrapResource("add", "entity", e.ID, errors.ErrAlreadyExists)
		}
	}

	next := append(cloneAll(list), e.Clone())
	return s.save(e.Type, next)
}

// Replace implements Store.
func (s *FileStore) Replace(e entities.Entity) error {
	if err := validate(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(e.Type)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == e.ID {
			next := cloneAll(list)
			next[i] = e.Clone()
			return s.save(e.Type, next)
		}
	}
	return errors.NewNotFoundError("entity", e.ID)
}

// Sort implements Store.
func (s *FileStore) Sort(typ entities.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(typ)
	if err != nil {
		return err
	}
	next := cloneAll(list)
	SortByRecency(next)
	return s.save(typ, next)
}

// ReplaceAll implements Store.
func (s *FileStore) ReplaceAll(typ entities.Type, city string, replacement []entities.Entity) error {
	for _, e := range replacement {
		if err := validate(e); err != nil {
			return err
		}
		if e.Type != typ || e.City != city {
			return errors.NewValidationError("entity", e.ID, "entity does not belong to the replaced (type, city) pair")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(typ)
	if err != nil {
		return err
	}

	next := make([]entities.Entity, 0, len(list)+len(replacement))
	for _, e := range list {
		if e.City != city {
			next = append(next, e.Clone())
		}
	}
	if err := checkReplacement(next, replacement); err != nil {
		return err
	}
	next = append(next, cloneAll(replacement)...)
	SortByRecency(next)
	return s.save(typ, next)
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func cloneAll(list []entities.Entity) []entities.Entity {
	if list == nil {
		return nil
	}
	out := make([]entities.Entity, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}
