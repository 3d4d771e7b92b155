// Package ldbstore keeps blobs in a LevelDB directory, registered as
// "leveldb".
//
// Keys are a one byte prefix followed by the big-endian id, so iteration
// order is id order. The database carries a format version under its own key.
package ldbstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/IvanBrykalov/mapgen/store"
)

const (
	blobPrefix = 'B'

	currentVersion = 1
)

var versionKey = []byte("\x00version")

func init() {
	store.Register("leveldb", func(location string) (store.Blobs, error) { return Open(location, false) })
}

type Store struct {
	db *leveldb.DB
}

var _ store.Blobs = (*Store)(nil)

// Open opens or creates the database in dir. A read-only open requires an
// existing database.
func Open(dir string, readOnly bool) (*Store, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}
	db, err := leveldb.OpenFile(dir, opt)
	if err != nil {
		return nil, err
	}

	version, err := getVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	switch {
	case version == 0 && !readOnly:
		if err := putVersion(db, currentVersion); err != nil {
			db.Close()
			return nil, err
		}
	case version > currentVersion:
		db.Close()
		return nil, fmt.Errorf("ldbstore: database version %d is newer than %d", version, currentVersion)
	}
	return &Store{db: db}, nil
}

func getVersion(db *leveldb.DB) (int, error) {
	value, err := db.Get(versionKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(value) != 4 {
		return 0, fmt.Errorf("ldbstore: incompatible version length: expected: %d  actual: %d", 4, len(value))
	}
	return int(binary.BigEndian.Uint32(value)), nil
}

func putVersion(db *leveldb.DB, version int) error {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, uint32(version))
	return db.Put(versionKey, value, nil)
}

func key(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = blobPrefix
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func (s *Store) Get(_ context.Context, id uint64) ([]byte, error) {
	data, err := s.db.Get(key(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	return data, err
}

func (s *Store) Put(_ context.Context, id uint64, data []byte) error {
	return s.db.Put(key(id), data, nil)
}

func (s *Store) Delete(_ context.Context, id uint64) (bool, error) {
	k := key(id)
	ok, err := s.db.Has(k, nil)
	if err != nil || !ok {
		return false, err
	}
	return true, s.db.Delete(k, nil)
}

func (s *Store) IDs(context.Context) ([]uint64, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{blobPrefix}), nil)
	defer iter.Release()

	var ids []uint64
	for iter.Next() {
		// contents of the returned slice are only valid until the next call to Next
		ids = append(ids, binary.BigEndian.Uint64(iter.Key()[1:]))
	}
	return ids, iter.Error()
}

func (s *Store) Close() error { return s.db.Close() }
