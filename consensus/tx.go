package consensus

// TxIn is the consumed-output reference of spec.md §3 (InputRef): the
// outpoint it spends, plus the Ed25519 signature and public key that
// authorize the spend.
type TxIn struct {
	PrevTxHash     Hash256
	PrevTxOutIndex uint32
	Signature      [SignatureSize]byte
	PublicKey      [PublicKeySize]byte
}

// TxOut is a payment to an address.
type TxOut struct {
	Amount  uint64
	Address Address
}

// Outpoint identifies a UTXO: the transaction that produced it and the
// index of the output within that transaction.
type Outpoint struct {
	TxHash Hash256
	Index  uint32
}

// Tx is a transaction: an ID derived from its signing header, one or more
// inputs, and one or more outputs.
type Tx struct {
	ID      Hash256
	Inputs  []TxIn
	Outputs []TxOut
}

// IsCoinbase reports whether tx has the single synthetic all-zero-prevout
// input that marks a coinbase transaction (spec.md §3).
func (tx *Tx) IsCoinbase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	return tx.Inputs[0].PrevTxHash == ZeroHash
}

// SigningHeader returns the bytes every non-coinbase input's signature
// covers: each input's (prev_tx_hash || prev_txout_index) followed by each
// output's (amount || address). It deliberately excludes signatures and
// public keys, since those would otherwise sign themselves (spec.md §4.1).
func (tx *Tx) SigningHeader() []byte {
	buf := make([]byte, 0, len(tx.Inputs)*36+len(tx.Outputs)*(8+AddressSize))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevTxHash[:]...)
		buf = appendU32LE(buf, in.PrevTxOutIndex)
	}
	for _, out := range tx.Outputs {
		buf = appendU64LE(buf, out.Amount)
		buf = append(buf, out.Address[:]...)
	}
	return buf
}

// ComputeTxID derives the canonical transaction ID: SHA256d(signing_header).
func ComputeTxID(tx *Tx) Hash256 {
	return SHA256d(tx.SigningHeader())
}

// UTXOView is the read-only chain view a context-sensitive validation pass
// needs. Both the chain manager's persistent view and the mempool's
// snapshot view implement it, so ValidateAgainstView has one code path for
// both callers.
type UTXOView interface {
	// Get returns the output at point and whether it exists.
	Get(point Outpoint) (TxOut, bool)
	// CoinbaseCreationHeight returns the height at which the output at
	// point was created and whether a coinbase produced it, used for
	// coinbase-maturity checks. ok is false if point is unknown.
	CoinbaseCreationHeight(point Outpoint) (height uint64, isCoinbase bool, ok bool)
}

// ValidTransaction runs the context-free structural/cryptographic checks of
// spec.md §4.4. It does not touch any UTXO view.
func ValidTransaction(tx *Tx) error {
	if len(tx.Inputs) == 0 {
		return newErr(KindInvalidTransaction, ReasonEmptyInputs)
	}
	if len(tx.Outputs) == 0 {
		return newErr(KindInvalidTransaction, ReasonEmptyOutputs)
	}

	coinbase := tx.IsCoinbase()
	if !coinbase {
		for _, out := range tx.Outputs {
			if out.Amount == 0 {
				return newErr(KindInvalidTransaction, ReasonZeroAmount)
			}
		}
	}

	seen := make(map[Outpoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		op := Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}
		if _, dup := seen[op]; dup {
			return newErr(KindInvalidTransaction, ReasonDuplicateInput)
		}
		seen[op] = struct{}{}
	}

	if got := ComputeTxID(tx); got != tx.ID {
		return newErr(KindInvalidTransaction, ReasonIDMismatch)
	}

	if coinbase {
		return nil
	}

	header := tx.SigningHeader()
	digest := SHA256d(header)
	for _, in := range tx.Inputs {
		if !VerifySignature(in.PublicKey[:], digest, in.Signature[:]) {
			return newErr(KindInvalidTransaction, ReasonBadSignature)
		}
	}
	return nil
}

// ValidateAgainstView runs the context-sensitive checks of spec.md §4.4/§4.5
// that require a chain view: every input's public key must hash to the
// address recorded in the output it spends, every input must reference an
// unspent output, a spent coinbase output must have matured, and total
// outputs must not exceed total inputs. height is the height at which tx is
// being considered (the block height for block application, or the
// mempool's current tip height + 1 for admission).
func ValidateAgainstView(tx *Tx, view UTXOView, height uint64) (fee uint64, err error) {
	if tx.IsCoinbase() {
		return 0, nil
	}

	var totalIn, totalOut uint64
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		op := Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}
		out, ok := view.Get(op)
		if !ok {
			return 0, newErr(KindContext, ReasonMissingUTXO)
		}

		expected := DeriveAddress(in.PublicKey[:])
		if expected != out.Address {
			return 0, newErr(KindInvalidTransaction, ReasonAddressMismatch)
		}

		if creationHeight, isCoinbase, ok := view.CoinbaseCreationHeight(op); ok && isCoinbase {
			if height < creationHeight+CoinbaseMaturity {
				return 0, newErr(KindContext, ReasonCoinbaseImmature)
			}
		}

		next := totalIn + out.Amount
		if next < totalIn {
			return 0, newErr(KindInvalidTransaction, ReasonValueOverflow)
		}
		totalIn = next
	}

	for _, out := range tx.Outputs {
		next := totalOut + out.Amount
		if next < totalOut {
			return 0, newErr(KindInvalidTransaction, ReasonValueOverflow)
		}
		totalOut = next
	}

	if totalOut > totalIn {
		return 0, newErr(KindContext, ReasonOutputsExceedInputs)
	}
	return totalIn - totalOut, nil
}

func appendU32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
