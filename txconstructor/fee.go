package txconstructor

import "context"

// MinimumFee estimates the smallest acceptable fee for a transaction of
// the given serialized size: the network's flat minimum plus its
// per-byte component, plus whatever relay fee the node currently
// advertises. The node-fee component is best-effort;
// if the query fails the network minimum alone is returned, since the
// node fee is re-added as its own destination at send time anyway.
func (c *Constructor) MinimumFee(ctx context.Context, sizeBytes int) uint64 {
	fee := c.config.MinimumFee + uint64(sizeBytes)*c.config.FeePerByte
	if nodeFee, _, err := c.node.NodeFee(ctx); err == nil {
		fee += nodeFee
	}
	return fee
}
