package memory

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const profilePrefix = "profile/"

// BadgerStore persists profiles in an embedded badger database so learned
// context survives process restarts.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open memory store")
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(repository string) (*Profile, error) {
	var p *Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profilePrefix + repository))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p = &Profile{}
			return json.Unmarshal(val, p)
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get profile for %s", repository)
	}
	return p, nil
}

func (s *BadgerStore) Put(p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode profile")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profilePrefix+p.Repository), data)
	})
	return errors.Wrapf(err, "put profile for %s", p.Repository)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
