package consensus

// genesisTimestamp and genesisBits are compiled-in header values with no
// meaning beyond "this is the fixed point the chain starts from" (spec.md
// §6). The genesis nonce is a placeholder 0, so the genesis hash is not
// guaranteed to meet its own target.
const (
	genesisTimestamp = uint32(1_700_000_000)
	genesisBits      = uint32(0x1e00ffff)
)

// genesisCoinbaseAddress is a fixed, unspendable-in-practice address (no
// known private key) that receives the genesis coinbase payout. Real
// deployments would replace this with a foundation/treasury address.
var genesisCoinbaseAddress = Address{
	AddressVersion,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Genesis returns the compiled-in genesis block. The chain cannot start
// without it (spec.md §6): previous_hash is all-zero, and it contains a
// single coinbase transaction paying the initial subsidy.
func Genesis() *Block {
	coinbase := Tx{
		Inputs: []TxIn{{
			PrevTxHash:     ZeroHash,
			PrevTxOutIndex: 0xffffffff,
		}},
		Outputs: []TxOut{{
			Amount:  InitialSubsidy,
			Address: genesisCoinbaseAddress,
		}},
	}
	coinbase.ID = ComputeTxID(&coinbase)

	root, _ := MerkleRoot([]Hash256{coinbase.ID})

	header := BlockHeader{
		Version:            BlockVersion,
		Timestamp:           genesisTimestamp,
		Nonce:               0,
		Bits:                genesisBits,
		CumulativeEmission:  InitialSubsidy,
		PreviousHash:        ZeroHash,
		MerkleRoot:          root,
	}

	b := &Block{
		Header:       header,
		Transactions: []Tx{coinbase},
	}
	b.Hash = ComputeBlockHash(&header)
	return b
}
