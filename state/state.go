// Package state records what was last exported so unchanged rosters aren't
// uploaded again.
package state

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
	"go.etcd.io/bbolt"
)

var (
	bucket         = []byte("checkpoint")
	keyFingerprint = []byte("fingerprint")
	keyImages      = []byte("images")
	keyTime        = []byte("time")
)

var errCorrupt = errors.New("state: corrupt checkpoint")

// Fingerprint identifies an exported payload together with the image slots
// it was uploaded to.
type Fingerprint [32]byte

// Sum returns the fingerprint of payload uploaded to slots.
func Sum(payload []byte, slots ...string) Fingerprint {
	h := blake3.New()
	h.Write(payload)
	for _, s := range slots {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}

	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Checkpoint describes a successful export.
type Checkpoint struct {
	Fingerprint Fingerprint
	Images      int
	Time        time.Time
}

// Store persists the most recent Checkpoint.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Last returns the most recent Checkpoint. It returns false if nothing has
// been exported yet.
func (s *Store) Last() (Checkpoint, bool, error) {
	var c Checkpoint
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)

		f := b.Get(keyFingerprint)
		if f == nil {
			return nil
		}
		if len(f) != len(c.Fingerprint) {
			return errCorrupt
		}
		copy(c.Fingerprint[:], f)

		if n := b.Get(keyImages); len(n) == 4 {
			c.Images = int(binary.BigEndian.Uint32(n))
		}

		if t := b.Get(keyTime); t != nil {
			if err := c.Time.UnmarshalBinary(t); err != nil {
				return err
			}
		}

		ok = true
		return nil
	})
	return c, ok, err
}

// Record replaces the stored Checkpoint with c.
func (s *Store) Record(c Checkpoint) error {
	t, err := c.Time.MarshalBinary()
	if err != nil {
		return err
	}

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(c.Images))

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if err := b.Put(keyFingerprint, c.Fingerprint[:]); err != nil {
			return err
		}
		if err := b.Put(keyImages, n[:]); err != nil {
			return err
		}
		return b.Put(keyTime, t)
	})
}

// Reset forgets the stored Checkpoint so the next export always uploads.
func (s *Store) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucket)
		return err
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
