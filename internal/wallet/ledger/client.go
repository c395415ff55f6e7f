package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	methodGetSeqno        = "ledger_getSeqno"
	methodGetBalance      = "ledger_getBalance"
	methodGetAssetBalance = "ledger_getAssetBalance"
	methodGetTransactions = "ledger_getTransactions"
	methodSendRaw         = "ledger_sendRawTransaction"

	defaultRequestTimeout = 15 * time.Second
)

// Client talks JSON-RPC to one or more ledger nodes and fails over to the
// next node on transport errors.
type Client struct {
	urls    []string
	clients []*rpc.Client
	mu      sync.Mutex
	current int
	timeout time.Duration
}

var _ Gateway = (*Client)(nil)

// Dial connects to the given node URLs. Nodes that cannot be dialed now are
// retried lazily on use; at least one must be reachable.
func Dial(ctx context.Context, urls []string, timeout time.Duration) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	clients := make([]*rpc.Client, len(urls))
	connected := 0
	for i, url := range urls {
		client, err := rpc.DialContext(ctx, url)
		if err != nil {
			log.Warn().
				Str("url", url).
				Err(err).
				Msg("Failed to connect to ledger node, will retry on use")
			continue
		}
		clients[i] = client
		connected++
	}

	if connected == 0 {
		return nil, errors.New("failed to connect to any ledger node")
	}

	return &Client{
		urls:    urls,
		clients: clients,
		timeout: timeout,
	}, nil
}

// Close closes all node connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, client := range c.clients {
		if client != nil {
			client.Close()
			c.clients[i] = nil
		}
	}
}

func (c *Client) GetSequenceNumber(ctx context.Context, wallet common.Address) (uint64, error) {
	var seqno hexutil.Uint64
	if err := c.call(ctx, &seqno, methodGetSeqno, wallet); err != nil {
		return 0, errors.Wrap(err, "failed to get sequence number")
	}

	return uint64(seqno), nil
}

func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := c.call(ctx, &balance, methodGetBalance, address); err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}

	return balance.ToInt(), nil
}

func (c *Client) GetAssetBalance(ctx context.Context, holding common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := c.call(ctx, &balance, methodGetAssetBalance, holding); err != nil {
		return nil, errors.Wrap(err, "failed to get asset balance")
	}

	return balance.ToInt(), nil
}

type rpcEffect struct {
	Destination common.Address `json:"destination"`
	Value       *hexutil.Big   `json:"value"`
}

type rpcInMessage struct {
	Source *common.Address `json:"source"`
	Body   hexutil.Bytes   `json:"body"`
}

type rpcTransaction struct {
	Hash        common.Hash    `json:"hash"`
	LogicalTime hexutil.Uint64 `json:"lt"`
	InMessage   *rpcInMessage  `json:"inMessage"`
	OutMessages []rpcEffect    `json:"outMessages"`
}

func (tx *rpcTransaction) record() TransactionRecord {
	rec := TransactionRecord{
		Reference:   tx.Hash.Hex(),
		LogicalTime: uint64(tx.LogicalTime),
		Effects:     make([]Effect, 0, len(tx.OutMessages)),
	}

	if tx.InMessage != nil {
		if tx.InMessage.Source != nil {
			rec.Source = *tx.InMessage.Source
		}
		rec.Payload = tx.InMessage.Body
	}

	for _, out := range tx.OutMessages {
		amount := new(big.Int)
		if out.Value != nil {
			amount = out.Value.ToInt()
		}
		rec.Effects = append(rec.Effects, Effect{Destination: out.Destination, Amount: amount})
	}

	return rec
}

func (c *Client) GetRecentTransactions(ctx context.Context, address common.Address, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		return nil, errors.Errorf("invalid transaction limit %d", limit)
	}

	var txs []rpcTransaction
	if err := c.call(ctx, &txs, methodGetTransactions, address, hexutil.Uint64(limit)); err != nil {
		return nil, errors.Wrap(err, "failed to get transactions")
	}

	records := make([]TransactionRecord, 0, len(txs))
	for i := range txs {
		records = append(records, txs[i].record())
	}

	return records, nil
}

func (c *Client) SubmitSignedTransaction(ctx context.Context, raw []byte) error {
	var hash common.Hash
	if err := c.call(ctx, &hash, methodSendRaw, hexutil.Bytes(raw)); err != nil {
		return errors.Wrap(err, "failed to send transaction")
	}

	log.Debug().Str("reference", hash.Hex()).Msg("Transaction accepted by ledger node")

	return nil
}

// call runs one JSON-RPC call, moving on to the next node when the transport
// fails. Errors returned by a node itself are not retried elsewhere.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	var lastErr error

	for attempt := 0; attempt < len(c.urls); attempt++ {
		client, idx, err := c.getClient(ctx)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = client.CallContext(callCtx, result, method, args...)
		cancel()

		if err == nil {
			return nil
		}

		var nodeErr rpc.Error
		if errors.As(err, &nodeErr) || ctx.Err() != nil {
			return err
		}

		log.Warn().
			Str("url", c.urls[idx]).
			Str("method", method).
			Err(err).
			Msg("Ledger node call failed, switching node")

		c.markFailed(idx)
		lastErr = err
	}

	return errors.Wrap(lastErr, "all ledger nodes failed")
}

func (c *Client) getClient(ctx context.Context) (*rpc.Client, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.clients); i++ {
		idx := (c.current + i) % len(c.clients)

		if c.clients[idx] == nil {
			client, err := rpc.DialContext(ctx, c.urls[idx])
			if err != nil {
				log.Debug().Str("url", c.urls[idx]).Err(err).Msg("Ledger node still unreachable")
				continue
			}
			c.clients[idx] = client
		}

		c.current = idx
		return c.clients[idx], idx, nil
	}

	return nil, 0, errors.New("all ledger nodes are unavailable")
}

func (c *Client) markFailed(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clients[idx] != nil {
		c.clients[idx].Close()
		c.clients[idx] = nil
	}

	c.current = (idx + 1) % len(c.clients)
}
