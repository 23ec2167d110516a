package txconstructor

import (
	"fmt"
	"sort"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
)

// plannedOutput is one output still waiting to be assigned its one-time
// key, after denomination splitting.
type plannedOutput struct {
	address string
	amount  uint64
}

// splitDestinations rewrites each destination into one plannedOutput per
// denomination digit: 1234 owed to address A
// becomes four outputs of 4, 30, 200, 1000, all addressed to A.
func splitDestinations(destinations []Destination) []plannedOutput {
	var out []plannedOutput
	for _, d := range destinations {
		for _, denom := range walletaddr.SplitAmountIntoDenominations(d.Amount) {
			out = append(out, plannedOutput{address: d.Address, amount: denom})
		}
	}
	return out
}

// buildOutputs constructs the on-wire outputs: sort the planned outputs
// by amount, generate one fresh ephemeral transaction keypair shared by
// every output, then derive each output's one-time public key from the
// destination's view key.
func (c *Constructor) buildOutputs(planned []plannedOutput) (txSecret crypto.SecretKey, txPublic crypto.PublicKey, outputs []Output, err error) {
	sort.Slice(planned, func(i, j int) bool { return planned[i].amount < planned[j].amount })

	txSecret, txPublic, err = crypto.GenerateKeyPair()
	if err != nil {
		return crypto.SecretKey{}, crypto.PublicKey{}, nil, fmt.Errorf("txconstructor: generating ephemeral transaction keypair: %w", err)
	}

	outputs = make([]Output, len(planned))
	for i, p := range planned {
		addr, err := c.network.Decode(p.address)
		if err != nil {
			return crypto.SecretKey{}, crypto.PublicKey{}, nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, p.address, err)
		}
		derivation, err := crypto.DeriveSharedSecret(addr.ViewKey, txSecret)
		if err != nil {
			return crypto.SecretKey{}, crypto.PublicKey{}, nil, fmt.Errorf("txconstructor: deriving output %d shared secret: %w", i, err)
		}
		oneTimePub, err := crypto.DerivePublicKey(derivation, uint64(i), addr.SpendKey)
		if err != nil {
			return crypto.SecretKey{}, crypto.PublicKey{}, nil, fmt.Errorf("txconstructor: deriving output %d one-time key: %w", i, err)
		}
		outputs[i] = Output{Amount: p.amount, Key: oneTimePub}
	}
	return txSecret, txPublic, outputs, nil
}

// derivedInputKey is the result of re-deriving a real input's one-time
// keypair against the transaction that originally paid it to us.
type derivedInputKey struct {
	oneTimeSecret crypto.SecretKey
	keyImage      crypto.KeyImage
}

// deriveInputKeys re-derives the one-time keypair and key image for each
// obscured real input, using the owner's private spend key and the
// original paying transaction's public key (not the new transaction's
// ephemeral key — this recovers the spend authority over an output
// already on chain). A mismatch between the re-derived public key and
// the on-chain one-time key aborts with ErrInvalidGeneratedKeyImage,
// catching key-material corruption before anything is signed.
func (c *Constructor) deriveInputKeys(obscured []ObscuredInput) ([]derivedInputKey, error) {
	viewSecret := c.store.ViewSecretKey()
	out := make([]derivedInputKey, len(obscured))
	for i, o := range obscured {
		derivation, err := crypto.DeriveSharedSecret(o.Real.Input.TransactionPublicKey, viewSecret)
		if err != nil {
			return nil, fmt.Errorf("txconstructor: deriving input %d shared secret: %w", i, err)
		}
		oneTimePub, err := crypto.DerivePublicKey(derivation, o.Real.Input.TransactionIndex, o.Real.PublicSpendKey)
		if err != nil {
			return nil, fmt.Errorf("txconstructor: deriving input %d one-time key: %w", i, err)
		}
		if oneTimePub != o.Real.Input.Key {
			return nil, fmt.Errorf("%w: input %d", ErrInvalidGeneratedKeyImage, i)
		}
		oneTimeSec, err := crypto.DeriveSecretKey(derivation, o.Real.Input.TransactionIndex, o.Real.PrivateSpendKey)
		if err != nil {
			return nil, fmt.Errorf("txconstructor: deriving input %d one-time secret: %w", i, err)
		}
		keyImage, err := crypto.GenerateKeyImage(oneTimePub, oneTimeSec)
		if err != nil {
			return nil, fmt.Errorf("txconstructor: generating input %d key image: %w", i, err)
		}
		out[i] = derivedInputKey{oneTimeSecret: oneTimeSec, keyImage: keyImage}
	}
	return out, nil
}

// assembleAndSign builds the
// transaction body with relative-offset inputs, hash its prefix, and
// generate + self-verify a ring signature per input. The returned
// Transaction is immutable — it must not be touched again once signed.
func (c *Constructor) assembleAndSign(
	obscured []ObscuredInput,
	derived []derivedInputKey,
	outputs []Output,
	unlockTime uint64,
	txPublic crypto.PublicKey,
	paymentID *[32]byte,
) (Transaction, error) {
	tx := Transaction{
		Version:    currentTransactionVersion,
		UnlockTime: unlockTime,
		Outputs:    outputs,
		Extra:      buildExtra(txPublic, paymentID),
	}
	tx.Inputs = make([]KeyImageInput, len(obscured))
	for i, o := range obscured {
		tx.Inputs[i] = KeyImageInput{KeyImage: derived[i].keyImage, OutputOffsets: o.relativeOutputOffsets()}
	}

	prefixHash := tx.PrefixHash()
	tx.Signatures = make([][]crypto.Signature, len(obscured))
	for i, o := range obscured {
		sigs, err := crypto.GenerateRingSignature(prefixHash, derived[i].keyImage, o.ringPublicKeys(), derived[i].oneTimeSecret, o.RealOutputIndex)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: input %d: %v", ErrFailedToCreateRingSignature, i, err)
		}
		ok, err := crypto.CheckRingSignature(prefixHash, derived[i].keyImage, o.ringPublicKeys(), sigs)
		if err != nil || !ok {
			return Transaction{}, fmt.Errorf("%w: input %d failed self-verification", ErrFailedToCreateRingSignature, i)
		}
		tx.Signatures[i] = sigs
	}
	return tx, nil
}

// checkBounds enforces the final limits: serialized size, pretty
// denominations, and fee conservation.
func (c *Constructor) checkBounds(tx Transaction, height uint64, totalInputAmount uint64, expectedFee uint64) error {
	if size := len(tx.Serialize()); size > c.config.MaxTransactionSize(height) {
		return fmt.Errorf("%w: %d bytes > limit %d at height %d", ErrTooManyInputsToFitInBlock, size, c.config.MaxTransactionSize(height), height)
	}
	for _, out := range tx.Outputs {
		if !walletaddr.IsPrettyDenomination(out.Amount) {
			return fmt.Errorf("%w: %d", ErrInvalidAmounts, out.Amount)
		}
	}
	var sumOutputs uint64
	for _, out := range tx.Outputs {
		sumOutputs += out.Amount
	}
	actualFee := totalInputAmount - sumOutputs
	if actualFee != expectedFee {
		return fmt.Errorf("%w: actual %d, expected %d", ErrUnexpectedFee, actualFee, expectedFee)
	}
	return nil
}

// sumInputs totals the selected inputs' amounts.
func sumInputs(selected []subwallet.SpendableInput) uint64 {
	var sum uint64
	for _, in := range selected {
		sum += in.Input.Amount
	}
	return sum
}
