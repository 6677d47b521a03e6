package consensus

// EncodeBlock serializes a full block for storage/transport: header_bytes
// || hash(32) || transaction_count(u32) || transactions (spec.md §4.1,
// §6).
func EncodeBlock(b *Block) []byte {
	out := make([]byte, 0, len(HeaderBytes(&b.Header))+HashSize+4)
	out = append(out, HeaderBytes(&b.Header)...)
	out = append(out, b.Hash[:]...)
	out = appendU32LE(out, uint32(len(b.Transactions)))
	for i := range b.Transactions {
		out = append(out, EncodeTx(&b.Transactions[i])...)
	}
	return out
}

// blockHeaderWireSize is the fixed byte length of an encoded BlockHeader:
// version(4) + timestamp(4) + nonce(4) + bits(4) + cumulative_emission(8) +
// previous_hash(32) + merkle_root(32).
const blockHeaderWireSize = 4 + 4 + 4 + 4 + 8 + HashSize + HashSize

// DecodeBlock parses the bytes produced by EncodeBlock.
func DecodeBlock(b []byte) (*Block, error) {
	r := newReader(b)

	headerBytes, err := r.bytes(blockHeaderWireSize)
	if err != nil {
		return nil, err
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	hash, err := r.hash()
	if err != nil {
		return nil, err
	}

	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := checkCount(count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, newErr(KindInvalidBlock, ReasonNoTransactions)
	}

	txs := make([]Tx, count)
	for i := range txs {
		tx, err := decodeTxFrom(r)
		if err != nil {
			return nil, err
		}
		txs[i] = *tx
	}

	if !r.atEnd() {
		return nil, newErr(KindCodec, ReasonTrailingBytes)
	}

	return &Block{Header: header, Hash: hash, Transactions: txs}, nil
}

func decodeHeader(b []byte) (BlockHeader, error) {
	r := newReader(b)
	var h BlockHeader
	var err error
	if h.Version, err = r.u32(); err != nil {
		return h, err
	}
	if h.Timestamp, err = r.u32(); err != nil {
		return h, err
	}
	if h.Nonce, err = r.u32(); err != nil {
		return h, err
	}
	if h.Bits, err = r.u32(); err != nil {
		return h, err
	}
	if h.CumulativeEmission, err = r.u64(); err != nil {
		return h, err
	}
	if h.PreviousHash, err = r.hash(); err != nil {
		return h, err
	}
	if h.MerkleRoot, err = r.hash(); err != nil {
		return h, err
	}
	if !r.atEnd() {
		return h, newErr(KindCodec, ReasonTrailingBytes)
	}
	return h, nil
}
