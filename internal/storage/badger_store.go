package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore provides generic JSON storage for entities under a key prefix.
// Every operation has a Tx variant that joins a caller's transaction.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), fmt.Sprintf("%s:", s.prefix))
}

// sequence keys sort outside the entity range, so iteration never sees them
func (s *BadgerStore) sequenceKey() []byte {
	return []byte(s.prefix + "#seq")
}

func (s *BadgerStore) Create(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.CreateTx(txn, entity)
	})
}

func (s *BadgerStore) CreateTx(txn *badger.Txn, entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	_, err = txn.Get(key)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, entity.GetID())
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	return txn.Set(key, data)
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	return s.db.View(func(txn *badger.Txn) error {
		return s.GetTx(txn, id, entity)
	})
}

func (s *BadgerStore) GetTx(txn *badger.Txn, id string, entity Entity) error {
	item, err := txn.Get(s.makeKey(id))
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, entity)
	})
}

func (s *BadgerStore) Update(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.UpdateTx(txn, entity)
	})
}

func (s *BadgerStore) UpdateTx(txn *badger.Txn, entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	_, err = txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, entity.GetID())
	} else if err != nil {
		return err
	}

	return txn.Set(key, data)
}

func (s *BadgerStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.DeleteTx(txn, id)
	})
}

func (s *BadgerStore) DeleteTx(txn *badger.Txn, id string) error {
	key := s.makeKey(id)
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return err
	}

	return txn.Delete(key)
}

func (s *BadgerStore) List(results interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		return s.ListTx(txn, results)
	})
}

// ListTx decodes every entity under the prefix, in key order, into results,
// which must point to a slice.
func (s *BadgerStore) ListTx(txn *badger.Txn, results interface{}) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := []byte(s.prefix + ":")
	values := []json.RawMessage{}

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("listing entities: %w", err)
		}
		values = append(values, val)
	}

	// Marshal collected values into final result
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, results)
}

// IDsTx returns the IDs under the prefix in key order without reading values.
func (s *BadgerStore) IDsTx(txn *badger.Txn) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(s.prefix + ":")
	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, s.stripPrefix(it.Item().Key()))
	}
	return ids
}

// SequenceTx returns how many IDs NextIDTx has handed out.
func (s *BadgerStore) SequenceTx(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(s.sequenceKey())
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var n int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence under %s", s.prefix)
		}
		n = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return n, err
}

// NextIDTx hands out contiguous IDs starting at 0.
func (s *BadgerStore) NextIDTx(txn *badger.Txn) (int64, error) {
	n, err := s.SequenceTx(txn)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n+1))
	if err := txn.Set(s.sequenceKey(), buf); err != nil {
		return 0, err
	}
	return n, nil
}
