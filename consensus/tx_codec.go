package consensus

// EncodeTx serializes tx in the canonical wire form: id(32) ||
// input_count(u32) || inputs || output_count(u32) || outputs, where each
// input is prev_tx_hash(32) || prev_txout_index(u32) || signature(64) ||
// public_key(32), and each output is amount(u64) || address(25).
//
// This is the transport/storage encoding; SigningHeader (tx.go) is the
// narrower subset that signatures actually cover.
func EncodeTx(tx *Tx) []byte {
	out := make([]byte, 0, HashSize+4+len(tx.Inputs)*(HashSize+4+SignatureSize+PublicKeySize)+4+len(tx.Outputs)*(8+AddressSize))
	out = append(out, tx.ID[:]...)
	out = appendU32LE(out, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = append(out, in.PrevTxHash[:]...)
		out = appendU32LE(out, in.PrevTxOutIndex)
		out = append(out, in.Signature[:]...)
		out = append(out, in.PublicKey[:]...)
	}
	out = appendU32LE(out, uint32(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = appendU64LE(out, o.Amount)
		out = append(out, o.Address[:]...)
	}
	return out
}

// DecodeTx parses the bytes produced by EncodeTx, consuming exactly len(b)
// bytes; trailing or truncated input is a CodecError.
func DecodeTx(b []byte) (*Tx, error) {
	r := newReader(b)
	tx, err := decodeTxFrom(r)
	if err != nil {
		return nil, err
	}
	if !r.atEnd() {
		return nil, newErr(KindCodec, ReasonTrailingBytes)
	}
	return tx, nil
}

// decodeTxFrom parses one transaction starting at r's current position and
// leaves r positioned just past it, without requiring r to be fully
// consumed — used by DecodeBlock to parse a sequence of transactions.
func decodeTxFrom(r *reader) (*Tx, error) {
	var tx Tx
	var err error
	if tx.ID, err = r.hash(); err != nil {
		return nil, err
	}

	inCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := checkCount(inCount); err != nil {
		return nil, err
	}
	tx.Inputs = make([]TxIn, inCount)
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		if in.PrevTxHash, err = r.hash(); err != nil {
			return nil, err
		}
		if in.PrevTxOutIndex, err = r.u32(); err != nil {
			return nil, err
		}
		sigBytes, err := r.bytes(SignatureSize)
		if err != nil {
			return nil, err
		}
		copy(in.Signature[:], sigBytes)
		pkBytes, err := r.bytes(PublicKeySize)
		if err != nil {
			return nil, err
		}
		copy(in.PublicKey[:], pkBytes)
	}

	outCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := checkCount(outCount); err != nil {
		return nil, err
	}
	tx.Outputs = make([]TxOut, outCount)
	for i := range tx.Outputs {
		o := &tx.Outputs[i]
		if o.Amount, err = r.u64(); err != nil {
			return nil, err
		}
		addrBytes, err := r.bytes(AddressSize)
		if err != nil {
			return nil, err
		}
		copy(o.Address[:], addrBytes)
	}

	return &tx, nil
}
