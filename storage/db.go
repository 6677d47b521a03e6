package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"vulkan.dev/core/consensus"
)

var (
	bucketBlocks = []byte("blocks_by_hash")
	bucketIndex  = []byte("block_index_by_hash")
	bucketUtxo   = []byte("utxo_by_outpoint")
	bucketUndo   = []byte("undo_by_block_hash")
	bucketHeight = []byte("block_hash_by_height")
	bucketTip    = []byte("tip")

	tipKey = []byte("tip")
)

// BoltStore is the durable Store implementation, one bbolt database file per
// chain datadir. Every multi-key mutation (ApplyBlock, UndoBlock) runs inside
// a single bolt.Update transaction, so a crash mid-write leaves either the
// old state or the new one, never a partial mix — spec.md §4.6's "no
// intermediate state is ever observable."
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) the bbolt file at path and
// ensures all required buckets exist.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open bbolt: %w", err)
	}
	s := &BoltStore{db: db}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketIndex, bucketUtxo, bucketUndo, bucketHeight, bucketTip} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) GetUTXO(point consensus.Outpoint) (UtxoEntry, bool, error) {
	var out UtxoEntry
	var ok bool
	key := EncodeOutpointKey(point)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUtxo).Get(key)
		if v == nil {
			return nil
		}
		e, err := DecodeUtxoEntry(v)
		if err != nil {
			return err
		}
		out, ok = e, true
		return nil
	})
	return out, ok, err
}

func (s *BoltStore) GetBlock(hash consensus.Hash256) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hash[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *BoltStore) PutBlock(hash consensus.Hash256, raw []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(hash[:], raw)
	})
}

func (s *BoltStore) GetIndex(hash consensus.Hash256) (IndexEntry, bool, error) {
	var out IndexEntry
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIndex).Get(hash[:])
		if v == nil {
			return nil
		}
		e, err := decodeIndexEntry(v)
		if err != nil {
			return err
		}
		out, ok = e, true
		return nil
	})
	return out, ok, err
}

func (s *BoltStore) PutIndex(hash consensus.Hash256, entry IndexEntry) error {
	b, err := encodeIndexEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).Put(hash[:], b)
	})
}

func (s *BoltStore) GetHeightHash(height uint64) (consensus.Hash256, bool, error) {
	var out consensus.Hash256
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeight).Get(EncodeHeightKey(height))
		if v == nil {
			return nil
		}
		copy(out[:], v)
		ok = true
		return nil
	})
	return out, ok, err
}

func (s *BoltStore) Tip() (consensus.Hash256, uint64, bool, error) {
	var hash consensus.Hash256
	var height uint64
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTip).Get(tipKey)
		if v == nil {
			return nil
		}
		t, err := decodeTip(v)
		if err != nil {
			return err
		}
		hash, height, ok = t.hash, t.height, true
		return nil
	})
	return hash, height, ok, err
}

func (s *BoltStore) GetUndo(hash consensus.Hash256) (UndoRecord, bool, error) {
	var out UndoRecord
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(hash[:])
		if v == nil {
			return nil
		}
		u, err := DecodeUndoRecord(v)
		if err != nil {
			return err
		}
		out, ok = u, true
		return nil
	})
	return out, ok, err
}

// ApplyBlock mirrors the teacher's ApplyBlockIfBestTip stage-5 persist step:
// one bolt.Update deletes spent outpoints, inserts created ones, writes the
// undo record, advances the height index, and moves the tip.
func (s *BoltStore) ApplyBlock(newTipHash consensus.Hash256, newHeight uint64, spent []consensus.Outpoint, created []RemovedOutput, index IndexEntry) error {
	indexBytes, err := encodeIndexEntry(index)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bu := tx.Bucket(bucketUtxo)

		undo := UndoRecord{
			Removed: make([]RemovedOutput, 0, len(spent)),
			Created: make([]consensus.Outpoint, 0, len(created)),
		}
		for _, op := range spent {
			key := EncodeOutpointKey(op)
			v := bu.Get(key)
			if v == nil {
				return fmt.Errorf("storage: apply: spent outpoint not found: %x/%d", op.TxHash, op.Index)
			}
			prior, err := DecodeUtxoEntry(v)
			if err != nil {
				return err
			}
			undo.Removed = append(undo.Removed, RemovedOutput{Outpoint: op, Entry: prior})
			if err := bu.Delete(key); err != nil {
				return err
			}
		}
		for _, c := range created {
			val := EncodeUtxoEntry(c.Entry)
			if err := bu.Put(EncodeOutpointKey(c.Outpoint), val); err != nil {
				return err
			}
			undo.Created = append(undo.Created, c.Outpoint)
		}

		if err := tx.Bucket(bucketUndo).Put(newTipHash[:], EncodeUndoRecord(undo)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(newTipHash[:], indexBytes); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHeight).Put(EncodeHeightKey(newHeight), newTipHash[:]); err != nil {
			return err
		}
		return tx.Bucket(bucketTip).Put(tipKey, encodeTip(tipRecord{hash: newTipHash, height: newHeight}))
	})
}

// UndoBlock inverts ApplyBlock for the block at the current tip: restores
// every removed output, deletes every created one, then rolls the tip back.
func (s *BoltStore) UndoBlock(blockHash, parentHash consensus.Hash256, parentHeight uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(blockHash[:])
		if v == nil {
			return fmt.Errorf("storage: undo: no undo record for %x", blockHash)
		}
		undo, err := DecodeUndoRecord(v)
		if err != nil {
			return err
		}

		bu := tx.Bucket(bucketUtxo)
		for _, op := range undo.Created {
			if err := bu.Delete(EncodeOutpointKey(op)); err != nil {
				return err
			}
		}
		for _, r := range undo.Removed {
			if err := bu.Put(EncodeOutpointKey(r.Outpoint), EncodeUtxoEntry(r.Entry)); err != nil {
				return err
			}
		}

		tipHash, tipHeight, ok, err := decodeTipFromTx(tx)
		if err != nil {
			return err
		}
		if ok {
			if err := tx.Bucket(bucketHeight).Delete(EncodeHeightKey(tipHeight)); err != nil {
				return err
			}
		}

		if err := tx.Bucket(bucketUndo).Delete(blockHash[:]); err != nil {
			return err
		}
		return tx.Bucket(bucketTip).Put(tipKey, encodeTip(tipRecord{hash: parentHash, height: parentHeight}))
	})
}

func decodeTipFromTx(tx *bolt.Tx) (consensus.Hash256, uint64, bool, error) {
	v := tx.Bucket(bucketTip).Get(tipKey)
	if v == nil {
		return consensus.Hash256{}, 0, false, nil
	}
	t, err := decodeTip(v)
	if err != nil {
		return consensus.Hash256{}, 0, false, err
	}
	return t.hash, t.height, true, nil
}
