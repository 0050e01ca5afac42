package storage

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
)

// Badger is a dgraph-io/badger/v4-backed Backend: each object is a
// single key under a fixed prefix, values
// store a 4-byte big-endian flags word followed by the raw object bytes. It is the
// default persistent-store backend in the demo binary, standing in for
// the internal-trusted-storage/protected-storage service the real
// deployment would delegate to.
type Badger struct {
	db *badger.DB
}

// NewBadger wraps an already-open badger.DB as a Backend.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func badgerKey(ownerID uint32, uid uint64) []byte {
	key := make([]byte, 4+8)
	binary.BigEndian.PutUint32(key[0:4], ownerID)
	binary.BigEndian.PutUint64(key[4:12], uid)
	return append([]byte("uefi-var:"), key...)
}

func encodeBadgerValue(flags Flags, data []byte) []byte {
	v := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(v[0:4], uint32(flags))
	copy(v[4:], data)
	return v
}

func decodeBadgerValue(v []byte) (Flags, []byte) {
	if len(v) < 4 {
		return FlagNone, nil
	}
	return Flags(binary.BigEndian.Uint32(v[0:4])), v[4:]
}

func (b *Badger) Set(_ context.Context, ownerID uint32, uid uint64, data []byte, flags Flags) efistatus.PSAStatus {
	key := badgerKey(ownerID, uid)

	err := b.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(key); err == nil {
			var existingFlags Flags
			_ = item.Value(func(v []byte) error {
				existingFlags, _ = decodeBadgerValue(v)
				return nil
			})
			if existingFlags&FlagWriteOnce != 0 {
				return errWriteOnce
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return txn.Set(key, encodeBadgerValue(flags, data))
	})

	return badgerStatus(err)
}

var errWriteOnce = errors.New("storage: object is write-once")
var errOffsetBeyondSize = errors.New("storage: offset beyond object size")

func (b *Badger) Get(_ context.Context, ownerID uint32, uid uint64, offset int, dst []byte) (int, efistatus.PSAStatus) {
	key := badgerKey(ownerID, uid)
	n := 0

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			_, data := decodeBadgerValue(v)
			if offset > len(data) {
				return errOffsetBeyondSize
			}
			n = copy(dst, data[offset:])
			return nil
		})
	})

	return n, badgerStatus(err)
}

func (b *Badger) GetInfo(_ context.Context, ownerID uint32, uid uint64) (ObjectInfo, efistatus.PSAStatus) {
	key := badgerKey(ownerID, uid)
	info := ObjectInfo{UID: uid, OwnerID: ownerID}

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			flags, data := decodeBadgerValue(v)
			info.Flags = flags
			info.Size = len(data)
			return nil
		})
	})

	return info, badgerStatus(err)
}

func (b *Badger) Remove(_ context.Context, ownerID uint32, uid uint64) efistatus.PSAStatus {
	key := badgerKey(ownerID, uid)

	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})

	return badgerStatus(err)
}

func (b *Badger) Create(_ context.Context, ownerID uint32, uid uint64, size int, flags Flags) efistatus.PSAStatus {
	key := badgerKey(ownerID, uid)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeBadgerValue(flags, make([]byte, size)))
	})
	return badgerStatus(err)
}

func (b *Badger) SetExtended(_ context.Context, ownerID uint32, uid uint64, offset int, data []byte) efistatus.PSAStatus {
	key := badgerKey(ownerID, uid)

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		var flags Flags
		var existing []byte
		if verr := item.Value(func(v []byte) error {
			f, d := decodeBadgerValue(v)
			flags = f
			existing = append([]byte(nil), d...)
			return nil
		}); verr != nil {
			return verr
		}

		if offset+len(data) > len(existing) {
			grown := make([]byte, offset+len(data))
			copy(grown, existing)
			existing = grown
		}
		copy(existing[offset:], data)

		return txn.Set(key, encodeBadgerValue(flags, existing))
	})

	return badgerStatus(err)
}

func (b *Badger) GetSupport(_ context.Context, ownerID uint32, uid uint64) (Flags, efistatus.PSAStatus) {
	return FlagWriteOnce | FlagNoConfidentiality, efistatus.PSASuccess
}

func badgerStatus(err error) efistatus.PSAStatus {
	switch {
	case err == nil:
		return efistatus.PSASuccess
	case errors.Is(err, badger.ErrKeyNotFound):
		return efistatus.PSAErrorDoesNotExist
	case errors.Is(err, errWriteOnce):
		return efistatus.PSAErrorNotPermitted
	case errors.Is(err, errOffsetBeyondSize):
		return efistatus.PSAErrorInvalidArgument
	default:
		return efistatus.PSAErrorStorageFailure
	}
}
