package consensus

import "time"

// BlockHeader is the fixed-layout, hashed portion of a block (spec.md
// §4.1). Field order here is the order the header is hashed and serialized
// in: version || timestamp || nonce || bits || cumulative_emission ||
// previous_hash || merkle_root.
type BlockHeader struct {
	Version            uint32
	Timestamp          uint32
	Nonce              uint32
	Bits               uint32
	CumulativeEmission uint64
	PreviousHash       Hash256
	MerkleRoot         Hash256
}

// Block is a full block: its header, header hash, and ordered transactions.
type Block struct {
	Header       BlockHeader
	Hash         Hash256
	Transactions []Tx
}

// HeaderBytes serializes the header fields in the fixed order hashed into
// Block.Hash (spec.md §4.1): 24 bytes of fixed-width fields followed by the
// two 32-byte hashes, 88 bytes in all.
func HeaderBytes(h *BlockHeader) []byte {
	buf := make([]byte, 0, 4+4+4+4+8+HashSize+HashSize)
	buf = appendU32LE(buf, h.Version)
	buf = appendU32LE(buf, h.Timestamp)
	buf = appendU32LE(buf, h.Nonce)
	buf = appendU32LE(buf, h.Bits)
	buf = appendU64LE(buf, h.CumulativeEmission)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	return buf
}

// ComputeBlockHash derives the canonical block hash: SHA256d(header_bytes).
func ComputeBlockHash(h *BlockHeader) Hash256 {
	return SHA256d(HeaderBytes(h))
}

// BlockValidationContext carries the context-sensitive inputs the chain
// manager supplies when attaching a block (spec.md §4.5): the expected
// target for this height, the required coinbase amount bound, and the
// current wall-clock time. ValidateBlockAgainstChain does not read Now; the
// future-drift check is done by ValidBlock, which takes the time directly.
type BlockValidationContext struct {
	Height          uint64
	ExpectedBits    uint32
	BaseSubsidy     uint64
	Now             time.Time
	ExpectedParent  Hash256
	HaveParentCheck bool
}

// ValidBlock runs the structural, cryptographic, and PoW checks of
// spec.md §4.5 in the specified cheapest-first order. It does not touch
// chain state; ValidateBlockAgainstChain layers the context-sensitive
// checks on top once a view is available.
func ValidBlock(b *Block, now time.Time) error {
	if int64(b.Header.Timestamp) > now.Add(time.Duration(MaxFutureBlockTime)*time.Second).Unix() {
		return newErr(KindInvalidBlock, ReasonFutureTimestamp)
	}

	if len(b.Transactions) == 0 {
		return newErr(KindInvalidBlock, ReasonNoTransactions)
	}

	if !b.Transactions[0].IsCoinbase() {
		return newErr(KindInvalidBlock, ReasonMissingCoinbase)
	}
	for i := 1; i < len(b.Transactions); i++ {
		if b.Transactions[i].IsCoinbase() {
			return newErr(KindInvalidBlock, ReasonExtraCoinbase)
		}
	}

	if err := checkNoInternalDoubleSpend(b.Transactions); err != nil {
		return err
	}

	for i := range b.Transactions {
		if err := ValidTransaction(&b.Transactions[i]); err != nil {
			return err
		}
	}

	if len(HeaderBytes(&b.Header))+totalTxHeaderSize(b.Transactions) > MaxBlockSize {
		return newErr(KindInvalidBlock, ReasonOversizedBlock)
	}

	if got := ComputeBlockHash(&b.Header); got != b.Hash {
		return newErr(KindInvalidBlock, ReasonHashMismatch)
	}
	target, err := DecodeCompactTarget(b.Header.Bits)
	if err != nil {
		return err
	}
	if err := CheckProofOfWork(b.Hash, target); err != nil {
		return err
	}

	root, err := MerkleRoot(txIDs(b.Transactions))
	if err != nil {
		return err
	}
	if root != b.Header.MerkleRoot {
		return newErr(KindInvalidBlock, ReasonMerkleMismatch)
	}

	return nil
}

// ValidateBlockAgainstChain layers the context-sensitive checks of
// spec.md §4.5 on top of ValidBlock: correct parent linkage, the expected
// retarget, coinbase amount conservation, and per-input UTXO presence (via
// ValidateAgainstView inside the loop). It returns the total fees collected
// so the caller can form the coinbase bound without recomputing it.
func ValidateBlockAgainstChain(b *Block, view UTXOView, ctx BlockValidationContext) (totalFees uint64, err error) {
	if ctx.HaveParentCheck && b.Header.PreviousHash != ctx.ExpectedParent {
		return 0, newErr(KindContext, ReasonUnknownParent)
	}
	if b.Header.Bits != ctx.ExpectedBits {
		return 0, newErr(KindContext, ReasonBadRetarget)
	}

	for i := 1; i < len(b.Transactions); i++ {
		fee, ferr := ValidateAgainstView(&b.Transactions[i], view, ctx.Height)
		if ferr != nil {
			return 0, ferr
		}
		totalFees += fee
	}

	var coinbaseOut uint64
	for _, out := range b.Transactions[0].Outputs {
		coinbaseOut += out.Amount
	}
	if coinbaseOut > ctx.BaseSubsidy+totalFees {
		return 0, newErr(KindContext, ReasonBadCoinbaseAmount)
	}

	return totalFees, nil
}

func checkNoInternalDoubleSpend(txs []Tx) error {
	seenIDs := make(map[Hash256]struct{}, len(txs))
	seenOutpoints := make(map[Outpoint]struct{})
	for i := range txs {
		tx := &txs[i]
		if _, dup := seenIDs[tx.ID]; dup {
			return newErr(KindInvalidBlock, ReasonDuplicateTxID)
		}
		seenIDs[tx.ID] = struct{}{}

		for _, in := range tx.Inputs {
			if tx.IsCoinbase() {
				continue
			}
			op := Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}
			if _, dup := seenOutpoints[op]; dup {
				return newErr(KindInvalidBlock, ReasonDoubleSpendInBlock)
			}
			seenOutpoints[op] = struct{}{}
		}
	}
	return nil
}

func txIDs(txs []Tx) []Hash256 {
	ids := make([]Hash256, len(txs))
	for i := range txs {
		ids[i] = txs[i].ID
	}
	return ids
}

func totalTxHeaderSize(txs []Tx) int {
	total := 0
	for i := range txs {
		total += len(EncodeTx(&txs[i]))
	}
	return total
}
