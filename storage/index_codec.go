package storage

import (
	"encoding/binary"
	"fmt"

	"vulkan.dev/core/consensus"
)

// encodeIndexEntry serializes an IndexEntry: height(8) || parent_hash(32) ||
// status(1) || work_len(2) || work_decimal_bytes. Cumulative work is kept as
// a decimal string (it can exceed 64 bits) and stored as its raw ASCII
// bytes, following the teacher's length-prefixed big.Int encoding.
func encodeIndexEntry(e IndexEntry) ([]byte, error) {
	work := []byte(e.CumulativeWorkDec)
	if len(work) > 0xffff {
		return nil, fmt.Errorf("storage: index: cumulative_work too large")
	}
	out := make([]byte, 8+consensus.HashSize+1+2+len(work))
	binary.LittleEndian.PutUint64(out[0:8], e.Height)
	copy(out[8:8+consensus.HashSize], e.ParentHash[:])
	off := 8 + consensus.HashSize
	out[off] = byte(e.Status)
	binary.LittleEndian.PutUint16(out[off+1:off+3], uint16(len(work)))
	copy(out[off+3:], work)
	return out, nil
}

func decodeIndexEntry(b []byte) (IndexEntry, error) {
	head := 8 + consensus.HashSize + 1 + 2
	if len(b) < head {
		return IndexEntry{}, errTruncated("index_entry")
	}
	var e IndexEntry
	e.Height = binary.LittleEndian.Uint64(b[0:8])
	copy(e.ParentHash[:], b[8:8+consensus.HashSize])
	off := 8 + consensus.HashSize
	e.Status = BlockStatus(b[off])
	workLen := int(binary.LittleEndian.Uint16(b[off+1 : off+3]))
	if head+workLen != len(b) {
		return IndexEntry{}, errTruncated("index_entry")
	}
	e.CumulativeWorkDec = string(b[head:])
	return e, nil
}

// tipRecord is the decoded form of the tip bucket's sole value.
type tipRecord struct {
	hash   consensus.Hash256
	height uint64
}

func encodeTip(t tipRecord) []byte {
	out := make([]byte, consensus.HashSize+8)
	copy(out[:consensus.HashSize], t.hash[:])
	binary.LittleEndian.PutUint64(out[consensus.HashSize:], t.height)
	return out
}

func decodeTip(b []byte) (tipRecord, error) {
	if len(b) != consensus.HashSize+8 {
		return tipRecord{}, errTruncated("tip")
	}
	var t tipRecord
	copy(t.hash[:], b[:consensus.HashSize])
	t.height = binary.LittleEndian.Uint64(b[consensus.HashSize:])
	return t, nil
}
