package walletsynchronizer

import (
	"github.com/kryptokrona/kryptokrona-sub002/build"
	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
)

// scanAndBuildTransaction runs output and input scanning over one
// transaction, returning the derived record and ok=true if any part of
// it belongs to this wallet. Relevance is tested per transaction rather
// than per block, since a block ordinarily carries many transactions
// and most are unrelated.
func (s *Synchronizer) scanAndBuildTransaction(height, timestamp uint64, wt node.WalletTransaction, isCoinbase bool) (subwallets.ConfirmedTransaction, bool) {
	transfersIn := map[string]uint64{}
	transfersOut := map[string]uint64{}

	sumOutputs := s.scanOutputs(height, wt, transfersIn)

	var sumInputs uint64
	if !isCoinbase {
		sumInputs = s.scanInputs(height, wt, transfersOut)
	}

	if len(transfersIn) == 0 && len(transfersOut) == 0 {
		return subwallets.ConfirmedTransaction{}, false
	}

	var fee uint64
	if !isCoinbase && sumInputs >= sumOutputs {
		fee = sumInputs - sumOutputs
	}

	return subwallets.ConfirmedTransaction{
		Hash:         wt.Hash,
		BlockHeight:  height,
		Timestamp:    timestamp,
		Fee:          fee,
		PaymentID:    wt.PaymentID,
		IsCoinbase:   isCoinbase,
		TransfersIn:  transfersIn,
		TransfersOut: transfersOut,
	}, true
}

// scanOutputs detects incoming outputs: derive the
// transaction's shared secret once, then test each output against every
// tracked public spend key. A failed derivation means the transaction's
// public key is malformed; the transaction's
// outputs are simply skipped rather than aborting the rest of the block.
func (s *Synchronizer) scanOutputs(height uint64, wt node.WalletTransaction, transfersIn map[string]uint64) (sum uint64) {
	derivation, err := crypto.DeriveSharedSecret(wt.TransactionPublicKey, s.store.ViewSecretKey())
	if err != nil {
		return 0
	}

	for idx, out := range wt.Outputs {
		candidate, err := crypto.UnderivePublicKey(derivation, uint64(idx), out.Key)
		if err != nil {
			continue
		}
		address, owner, found := s.store.FindBySpendKey(candidate)
		if !found {
			continue
		}

		transfersIn[address] += out.Amount
		sum += out.Amount

		input := subwallet.TransactionInput{
			Amount:                out.Amount,
			BlockHeight:           height,
			TransactionPublicKey:  wt.TransactionPublicKey,
			TransactionIndex:      uint64(idx),
			GlobalOutputIndex:     out.GlobalOutputIndex,
			Key:                   out.Key,
			ParentTransactionHash: wt.Hash,
		}

		// Non-view subwallets derive the matching key image so the
		// input can later be recognized as spent; view-only subwallets
		// store the sentinel zero key image — subwallet.StoreTransactionInput already
		// enforces this zeroing itself based on owner.HasPrivateSpend,
		// so a derivation failure here just leaves the sentinel in
		// place rather than corrupting the input.
		if owner.HasPrivateSpend {
			if oneTimeSecret, err := crypto.DeriveSecretKey(derivation, uint64(idx), owner.PrivateSpendKey); err == nil {
				if keyImage, err := crypto.GenerateKeyImage(out.Key, oneTimeSecret); err == nil {
					input.KeyImage = keyImage
				} else {
					build.Severe("walletsynchronizer: generating key image for owned output failed:", err)
				}
			} else {
				build.Severe("walletsynchronizer: deriving one-time secret for owned output failed:", err)
			}
		}

		if err := s.store.StoreTransactionInput(address, input); err != nil {
			build.Severe("walletsynchronizer: storing transaction input:", err)
		}
	}
	return sum
}

// scanInputs detects outgoing spends: every key-image
// input is checked against the store's owner lookup; owned inputs are
// marked spent and attributed to the owning subwallet.
func (s *Synchronizer) scanInputs(height uint64, wt node.WalletTransaction, transfersOut map[string]uint64) (sum uint64) {
	for _, in := range wt.Inputs {
		owner, found := s.store.FindOwner(in.KeyImage)
		if !found {
			continue
		}
		transfersOut[owner.Address] += in.Amount
		sum += in.Amount
		if err := s.store.MarkInputAsSpent(in.KeyImage, height); err != nil {
			build.Severe("walletsynchronizer: marking input spent:", err)
		}
	}
	return sum
}
