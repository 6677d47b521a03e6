package storage

import (
	"encoding/binary"

	"vulkan.dev/core/consensus"
)

// UtxoEntry is the persisted value behind a UTXO key: the output itself,
// plus enough provenance (creation height, coinbase-or-not) to support the
// coinbase-maturity check in consensus.ValidateAgainstView.
type UtxoEntry struct {
	Output         consensus.TxOut
	CreationHeight uint64
	FromCoinbase   bool
}

// EncodeUtxoEntry serializes a UtxoEntry: amount(8) || address(25) ||
// creation_height(8) || from_coinbase(1).
func EncodeUtxoEntry(e UtxoEntry) []byte {
	out := make([]byte, 8+consensus.AddressSize+8+1)
	binary.LittleEndian.PutUint64(out[0:8], e.Output.Amount)
	copy(out[8:8+consensus.AddressSize], e.Output.Address[:])
	off := 8 + consensus.AddressSize
	binary.LittleEndian.PutUint64(out[off:off+8], e.CreationHeight)
	if e.FromCoinbase {
		out[off+8] = 1
	}
	return out
}

// DecodeUtxoEntry parses the bytes produced by EncodeUtxoEntry.
func DecodeUtxoEntry(b []byte) (UtxoEntry, error) {
	want := 8 + consensus.AddressSize + 8 + 1
	if len(b) != want {
		return UtxoEntry{}, errTruncated("utxo_entry")
	}
	var e UtxoEntry
	e.Output.Amount = binary.LittleEndian.Uint64(b[0:8])
	copy(e.Output.Address[:], b[8:8+consensus.AddressSize])
	off := 8 + consensus.AddressSize
	e.CreationHeight = binary.LittleEndian.Uint64(b[off : off+8])
	e.FromCoinbase = b[off+8] != 0
	return e, nil
}

// UndoRecord is everything a block's apply step did to the UTXO set:
// the outputs it removed (so undo can restore them) and the outpoints it
// created (so undo knows what to delete), per spec.md §4.6.
type UndoRecord struct {
	Removed []RemovedOutput
	Created []consensus.Outpoint
}

// RemovedOutput pairs an outpoint with its UTXO entry. In an UndoRecord it
// is an output a block's non-coinbase inputs consumed, with the entry that
// was there before the block was applied; in ApplyBlock's created list it
// is an output the block adds.
type RemovedOutput struct {
	Outpoint consensus.Outpoint
	Entry    UtxoEntry
}

// EncodeUndoRecord serializes an UndoRecord: removed_count(u32) ||
// removed records (outpoint(36) || entry) || created_count(u32) ||
// created outpoints(36 each).
func EncodeUndoRecord(u UndoRecord) []byte {
	entryWidth := 8 + consensus.AddressSize + 8 + 1
	out := make([]byte, 0, 4+len(u.Removed)*(consensus.HashSize+4+entryWidth)+4+len(u.Created)*(consensus.HashSize+4))
	var buf [4]byte

	binary.LittleEndian.PutUint32(buf[:], uint32(len(u.Removed)))
	out = append(out, buf[:]...)
	for _, r := range u.Removed {
		out = append(out, EncodeOutpointKey(r.Outpoint)...)
		out = append(out, EncodeUtxoEntry(r.Entry)...)
	}

	binary.LittleEndian.PutUint32(buf[:], uint32(len(u.Created)))
	out = append(out, buf[:]...)
	for _, op := range u.Created {
		out = append(out, EncodeOutpointKey(op)...)
	}
	return out
}

// DecodeUndoRecord parses the bytes produced by EncodeUndoRecord.
func DecodeUndoRecord(b []byte) (UndoRecord, error) {
	entryWidth := 8 + consensus.AddressSize + 8 + 1
	recordWidth := consensus.HashSize + 4 + entryWidth

	if len(b) < 4 {
		return UndoRecord{}, errTruncated("undo_record")
	}
	removedCount := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]

	u := UndoRecord{Removed: make([]RemovedOutput, removedCount)}
	for i := uint32(0); i < removedCount; i++ {
		if len(b) < recordWidth {
			return UndoRecord{}, errTruncated("undo_record")
		}
		var op consensus.Outpoint
		copy(op.TxHash[:], b[:consensus.HashSize])
		op.Index = binary.LittleEndian.Uint32(b[consensus.HashSize : consensus.HashSize+4])
		entry, err := DecodeUtxoEntry(b[consensus.HashSize+4 : recordWidth])
		if err != nil {
			return UndoRecord{}, err
		}
		u.Removed[i] = RemovedOutput{Outpoint: op, Entry: entry}
		b = b[recordWidth:]
	}

	if len(b) < 4 {
		return UndoRecord{}, errTruncated("undo_record")
	}
	createdCount := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	u.Created = make([]consensus.Outpoint, createdCount)
	for i := uint32(0); i < createdCount; i++ {
		if len(b) < consensus.HashSize+4 {
			return UndoRecord{}, errTruncated("undo_record")
		}
		var op consensus.Outpoint
		copy(op.TxHash[:], b[:consensus.HashSize])
		op.Index = binary.LittleEndian.Uint32(b[consensus.HashSize : consensus.HashSize+4])
		u.Created[i] = op
		b = b[consensus.HashSize+4:]
	}

	return u, nil
}

func errTruncated(what string) error {
	return &DecodeError{What: what}
}

// DecodeError reports a malformed on-disk record.
type DecodeError struct {
	What string
}

func (e *DecodeError) Error() string { return "storage: truncated " + e.What }
