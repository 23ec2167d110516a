package txconstructor

import (
	"context"
	"fmt"
	"sort"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/subwallet"
)

// ObscuredInput is one input after decoy mixing: the real input, the
// ring it will be signed against, and the real input's position within
// that ring.
type ObscuredInput struct {
	Real            subwallet.SpendableInput
	Ring            []node.RandomOutput // sorted ascending by GlobalOutputIndex, real output included
	RealOutputIndex int
}

// mixInputs requests mixin+1 decoys per amount (one spare in case the
// real output is itself returned among the decoys) and builds one ring
// per real input. When mixin is 0 every input
// forms a trivial one-member ring of just the real output, and no node
// call is made.
func (c *Constructor) mixInputs(ctx context.Context, inputs []subwallet.SpendableInput, mixin uint64) ([]ObscuredInput, error) {
	if mixin == 0 {
		out := make([]ObscuredInput, len(inputs))
		for i, in := range inputs {
			out[i] = ObscuredInput{
				Real: in,
				Ring: []node.RandomOutput{{
					GlobalOutputIndex: in.Input.GlobalOutputIndex,
					Key:               in.Input.Key,
				}},
				RealOutputIndex: 0,
			}
		}
		return out, nil
	}

	amounts := make([]uint64, 0, len(inputs))
	seen := make(map[uint64]struct{})
	for _, in := range inputs {
		if _, ok := seen[in.Input.Amount]; ok {
			continue
		}
		seen[in.Input.Amount] = struct{}{}
		amounts = append(amounts, in.Input.Amount)
	}

	decoysByAmount, err := c.node.GetRandomOutputs(ctx, amounts, int(mixin)+1)
	if err != nil {
		cached, ok := c.cachedDecoys(amounts, int(mixin)+1)
		if !ok {
			return nil, fmt.Errorf("txconstructor: requesting decoys: %w", err)
		}
		decoysByAmount = cached
	} else if c.config.DecoyCache != nil {
		for amount, outs := range decoysByAmount {
			// Best effort; the cache is derived state.
			_ = c.config.DecoyCache.StoreDecoyOutputs(amount, outs)
		}
	}

	out := make([]ObscuredInput, 0, len(inputs))
	for _, in := range inputs {
		decoys := decoysByAmount[in.Input.Amount]

		candidates := make([]node.RandomOutput, 0, len(decoys)+1)
		for _, d := range decoys {
			if d.GlobalOutputIndex == in.Input.GlobalOutputIndex {
				// our own real output came back as a "decoy"; drop it,
				// it will be reinserted below.
				continue
			}
			candidates = append(candidates, d)
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].GlobalOutputIndex < candidates[j].GlobalOutputIndex
		})
		if uint64(len(candidates)) < mixin {
			return nil, fmt.Errorf("%w: amount %d has %d usable decoys, need %d",
				ErrNotEnoughFakeOutputs, in.Input.Amount, len(candidates), mixin)
		}
		candidates = candidates[:mixin]

		real := node.RandomOutput{GlobalOutputIndex: in.Input.GlobalOutputIndex, Key: in.Input.Key}
		ring := append(candidates, real)
		sort.Slice(ring, func(i, j int) bool {
			return ring[i].GlobalOutputIndex < ring[j].GlobalOutputIndex
		})

		realIndex := -1
		for i, r := range ring {
			if r.GlobalOutputIndex == real.GlobalOutputIndex {
				realIndex = i
				break
			}
		}
		if realIndex < 0 {
			return nil, fmt.Errorf("txconstructor: internal error: real output missing from its own ring")
		}

		out = append(out, ObscuredInput{Real: in, Ring: ring, RealOutputIndex: realIndex})
	}
	return out, nil
}

// cachedDecoys serves a decoy request from the cache when the node is
// unreachable. Every requested amount must be present with at least
// `need` candidates, or the whole fallback is abandoned — a partially
// cached ring set would just fail later with a worse error.
func (c *Constructor) cachedDecoys(amounts []uint64, need int) (map[uint64][]node.RandomOutput, bool) {
	if c.config.DecoyCache == nil {
		return nil, false
	}
	out := make(map[uint64][]node.RandomOutput, len(amounts))
	for _, amount := range amounts {
		outs, ok, err := c.config.DecoyCache.LoadDecoyOutputs(amount)
		if err != nil || !ok || len(outs) < need {
			return nil, false
		}
		out[amount] = outs
	}
	return out, true
}

// ringPublicKeys extracts the ring member keys in order, for
// GenerateRingSignature/CheckRingSignature.
func (o ObscuredInput) ringPublicKeys() []crypto.PublicKey {
	out := make([]crypto.PublicKey, len(o.Ring))
	for i, r := range o.Ring {
		out[i] = r.Key
	}
	return out
}

// relativeOutputOffsets converts this input's ring global indexes into
// the relative-offset wire encoding.
func (o ObscuredInput) relativeOutputOffsets() []uint64 {
	absolute := make([]uint64, len(o.Ring))
	for i, r := range o.Ring {
		absolute[i] = r.GlobalOutputIndex
	}
	return RelativeOffsets(absolute)
}
