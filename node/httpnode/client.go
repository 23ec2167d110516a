// Package httpnode implements node.Node against a CryptoNote-style daemon
// JSON-RPC endpoint. Every request carries a fresh UUID so that
// concurrent downloader and foreground callers can be told apart in
// logs.
package httpnode

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
)

// DefaultTimeout bounds every RPC round trip.
const DefaultTimeout = 10 * time.Second

// Client implements node.Node over HTTP/JSON-RPC.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client talking to the daemon at baseURL (e.g.
// "http://127.0.0.1:11898"). A nil httpClient gets one built with
// DefaultTimeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	reqID := uuid.NewString()
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("httpnode: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/json_rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpnode: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", node.ErrOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: http status %d", node.ErrOffline, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("httpnode: decoding response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%w: %s (code %d)", node.ErrRejected, rr.Error.Message, rr.Error.Code)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, result); err != nil {
		return fmt.Errorf("httpnode: decoding result: %w", err)
	}
	return nil
}

type getLastBlockHeaderResult struct {
	BlockHeader struct {
		Height uint64 `json:"height"`
	} `json:"block_header"`
}

// LocalTip implements node.Node.
func (c *Client) LocalTip(ctx context.Context) (uint64, error) {
	var res getLastBlockHeaderResult
	if err := c.call(ctx, "getlastblockheader", nil, &res); err != nil {
		return 0, err
	}
	return res.BlockHeader.Height, nil
}

type infoResult struct {
	Height        uint64 `json:"height"`
	NetworkHeight uint64 `json:"network_height"`
}

// NetworkTip implements node.Node.
func (c *Client) NetworkTip(ctx context.Context) (uint64, error) {
	var res infoResult
	if err := c.call(ctx, "getinfo", nil, &res); err != nil {
		return 0, err
	}
	if res.NetworkHeight != 0 {
		return res.NetworkHeight, nil
	}
	return res.Height, nil
}

type feeInfoResult struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// NodeFee implements node.Node.
func (c *Client) NodeFee(ctx context.Context) (uint64, string, error) {
	var res feeInfoResult
	if err := c.call(ctx, "feeinfo", nil, &res); err != nil {
		return 0, "", fmt.Errorf("httpnode: node fee query failed: %w", err)
	}
	return res.Amount, res.Address, nil
}

type getBlocksParams struct {
	BlockIDs       []string `json:"blockIds"`
	StartHeight    uint64   `json:"startHeight"`
	StartTimestamp uint64   `json:"startTimestamp"`
}

type wireOutput struct {
	Key               string `json:"key"`
	Amount            uint64 `json:"amount"`
	GlobalOutputIndex uint64 `json:"globalIndex"`
}

type wireKeyImageInput struct {
	KeyImage string `json:"keyImage"`
	Amount   uint64 `json:"amount"`
}

type wireTransaction struct {
	Hash                 string              `json:"hash"`
	TransactionPublicKey string              `json:"txPublicKey"`
	PaymentID            string              `json:"paymentId,omitempty"`
	Outputs              []wireOutput        `json:"outputs"`
	Inputs               []wireKeyImageInput `json:"inputs"`
}

type wireBlock struct {
	Height    uint64           `json:"height"`
	Hash      string           `json:"hash"`
	Timestamp uint64           `json:"timestamp"`
	Coinbase  *wireTransaction `json:"coinbaseTransaction"`
	Txns      []wireTransaction `json:"transactions"`
}

type getBlocksResult struct {
	Blocks []wireBlock `json:"blocks"`
}

// GetBlocks implements node.Node.
func (c *Client) GetBlocks(ctx context.Context, checkpoints []node.Checkpoint, startHeight, startTimestamp uint64) ([]node.WalletBlock, error) {
	ids := make([]string, len(checkpoints))
	for i, cp := range checkpoints {
		ids[i] = cp.Hash.String()
	}
	var res getBlocksResult
	err := c.call(ctx, "getwalletsyncdata", getBlocksParams{
		BlockIDs:       ids,
		StartHeight:    startHeight,
		StartTimestamp: startTimestamp,
	}, &res)
	if err != nil {
		return nil, err
	}

	out := make([]node.WalletBlock, 0, len(res.Blocks))
	for _, wb := range res.Blocks {
		hash, err := crypto.HashFromHex(wb.Hash)
		if err != nil {
			return nil, fmt.Errorf("httpnode: malformed block hash %q: %w", wb.Hash, err)
		}
		block := node.WalletBlock{
			Height:    wb.Height,
			Hash:      hash,
			Timestamp: wb.Timestamp,
		}
		if wb.Coinbase != nil {
			txn, err := convertWireTransaction(*wb.Coinbase)
			if err != nil {
				return nil, err
			}
			block.CoinbaseTransaction = &txn
		}
		for _, wt := range wb.Txns {
			txn, err := convertWireTransaction(wt)
			if err != nil {
				return nil, err
			}
			block.Transactions = append(block.Transactions, txn)
		}
		out = append(out, block)
	}
	return out, nil
}

func convertWireTransaction(wt wireTransaction) (node.WalletTransaction, error) {
	hash, err := crypto.HashFromHex(wt.Hash)
	if err != nil {
		return node.WalletTransaction{}, fmt.Errorf("httpnode: malformed transaction hash %q: %w", wt.Hash, err)
	}
	txPub, err := crypto.PublicKeyFromHex(wt.TransactionPublicKey)
	if err != nil {
		return node.WalletTransaction{}, fmt.Errorf("httpnode: malformed tx public key %q: %w", wt.TransactionPublicKey, err)
	}
	txn := node.WalletTransaction{Hash: hash, TransactionPublicKey: txPub}

	if wt.PaymentID != "" {
		raw, err := hex.DecodeString(wt.PaymentID)
		if err != nil || len(raw) != 32 {
			return node.WalletTransaction{}, fmt.Errorf("httpnode: malformed payment id %q", wt.PaymentID)
		}
		var pid [32]byte
		copy(pid[:], raw)
		txn.PaymentID = &pid
	}

	for _, o := range wt.Outputs {
		key, err := crypto.PublicKeyFromHex(o.Key)
		if err != nil {
			return node.WalletTransaction{}, fmt.Errorf("httpnode: malformed output key %q: %w", o.Key, err)
		}
		txn.Outputs = append(txn.Outputs, node.WalletOutput{Key: key, Amount: o.Amount, GlobalOutputIndex: o.GlobalOutputIndex})
	}
	for _, in := range wt.Inputs {
		ki, err := crypto.KeyImageFromHex(in.KeyImage)
		if err != nil {
			return node.WalletTransaction{}, fmt.Errorf("httpnode: malformed key image %q: %w", in.KeyImage, err)
		}
		txn.Inputs = append(txn.Inputs, node.WalletKeyImageInput{KeyImage: ki, Amount: in.Amount})
	}
	return txn, nil
}

type getRandomOutputsParams struct {
	Amounts []uint64 `json:"amounts"`
	Count   int      `json:"outs_count"`
}

type wireRandomOutput struct {
	GlobalOutputIndex uint64 `json:"global_amount_index"`
	Key               string `json:"public_key"`
}

type wireOutsForAmount struct {
	Amount  uint64             `json:"amount"`
	Outputs []wireRandomOutput `json:"outs"`
}

type getRandomOutputsResult struct {
	Outs []wireOutsForAmount `json:"outs"`
}

// GetRandomOutputs implements node.Node.
func (c *Client) GetRandomOutputs(ctx context.Context, amounts []uint64, requestedCount int) (map[uint64][]node.RandomOutput, error) {
	var res getRandomOutputsResult
	err := c.call(ctx, "getrandom_outs", getRandomOutputsParams{Amounts: amounts, Count: requestedCount}, &res)
	if err != nil {
		return nil, err
	}

	out := make(map[uint64][]node.RandomOutput, len(res.Outs))
	for _, group := range res.Outs {
		if len(group.Outputs) < requestedCount {
			return nil, fmt.Errorf("%w: amount %d has %d available, %d requested",
				node.ErrNotEnoughFakeOutputs, group.Amount, len(group.Outputs), requestedCount)
		}
		outs := make([]node.RandomOutput, 0, len(group.Outputs))
		for _, o := range group.Outputs {
			key, err := crypto.PublicKeyFromHex(o.Key)
			if err != nil {
				return nil, fmt.Errorf("httpnode: malformed decoy key %q: %w", o.Key, err)
			}
			outs = append(outs, node.RandomOutput{GlobalOutputIndex: o.GlobalOutputIndex, Key: key})
		}
		out[group.Amount] = outs
	}
	return out, nil
}

type sendRawTransactionParams struct {
	Transaction string `json:"tx_as_hex"`
}

// SubmitTransaction implements node.Node.
func (c *Client) SubmitTransaction(ctx context.Context, rawTransaction []byte) error {
	return c.call(ctx, "sendrawtransaction", sendRawTransactionParams{
		Transaction: hex.EncodeToString(rawTransaction),
	}, nil)
}

var _ node.Node = (*Client)(nil)
