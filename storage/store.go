// Package storage persists the curation entry ledger in a BoltDB file. Each
// entry is stored as a JSON document keyed by its id; a separate index bucket
// preserves insertion order so listings are deterministic.
package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"

	"dappstore/native/curation"
)

var (
	bucketEntries = []byte("entries")
	bucketIndex   = []byte("index")
)

// Store is a bbolt-backed entry ledger satisfying the curation engine's state
// interface.
type Store struct {
	db *bolt.DB
}

// entryDoc mirrors a curation entry on disk with hex-encoded identities.
type entryDoc struct {
	Owner            string   `json:"owner"`
	ID               string   `json:"id"`
	Balance          *big.Int `json:"balance"`
	Rate             *big.Int `json:"rate"`
	Available        *big.Int `json:"available"`
	VotesMinted      *big.Int `json:"votesMinted"`
	VotesCast        *big.Int `json:"votesCast"`
	EffectiveBalance *big.Int `json:"effectiveBalance"`
}

// Open initialises (and migrates) the BoltDB-backed store.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CurationEntryGet loads one entry by id.
func (s *Store) CurationEntryGet(id [32]byte) (*curation.Entry, bool, error) {
	var entry *curation.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntries).Get(id[:])
		if raw == nil {
			return nil
		}
		decoded, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		entry = decoded
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	return entry, true, nil
}

// CurationEntryPut writes an entry, appending it to the insertion-order index
// on first sight of its id.
func (s *Store) CurationEntryPut(entry *curation.Entry) error {
	if entry == nil {
		return nil
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		if entries.Get(entry.ID[:]) == nil {
			index := tx.Bucket(bucketIndex)
			seq, err := index.NextSequence()
			if err != nil {
				return err
			}
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], seq)
			if err := index.Put(key[:], entry.ID[:]); err != nil {
				return err
			}
		}
		return entries.Put(entry.ID[:], raw)
	})
}

// CurationEntryList returns every entry in insertion order.
func (s *Store) CurationEntryList() ([]*curation.Entry, error) {
	var out []*curation.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		return tx.Bucket(bucketIndex).ForEach(func(_, id []byte) error {
			raw := entries.Get(id)
			if raw == nil {
				return fmt.Errorf("storage: index references missing entry %x", id)
			}
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeEntry(entry *curation.Entry) ([]byte, error) {
	doc := entryDoc{
		Owner:            hex.EncodeToString(entry.Owner[:]),
		ID:               hex.EncodeToString(entry.ID[:]),
		Balance:          entry.Balance,
		Rate:             entry.Rate,
		Available:        entry.Available,
		VotesMinted:      entry.VotesMinted,
		VotesCast:        entry.VotesCast,
		EffectiveBalance: entry.EffectiveBalance,
	}
	return json.Marshal(doc)
}

func decodeEntry(raw []byte) (*curation.Entry, error) {
	var doc entryDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	entry := &curation.Entry{
		Balance:          doc.Balance,
		Rate:             doc.Rate,
		Available:        doc.Available,
		VotesMinted:      doc.VotesMinted,
		VotesCast:        doc.VotesCast,
		EffectiveBalance: doc.EffectiveBalance,
	}
	owner, err := hex.DecodeString(doc.Owner)
	if err != nil || len(owner) != len(entry.Owner) {
		return nil, fmt.Errorf("storage: malformed owner %q", doc.Owner)
	}
	copy(entry.Owner[:], owner)
	id, err := hex.DecodeString(doc.ID)
	if err != nil || len(id) != len(entry.ID) {
		return nil, fmt.Errorf("storage: malformed id %q", doc.ID)
	}
	copy(entry.ID[:], id)
	return entry, nil
}
