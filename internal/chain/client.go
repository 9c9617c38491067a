package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides helper methods.
// Log subscriptions require a websocket or IPC endpoint.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// CheckSubscribable reports an error when rpcURL cannot carry log
// subscriptions. Plain HTTP endpoints only serve calls.
func CheckSubscribable(rpcURL string) error {
	if strings.HasSuffix(rpcURL, ".ipc") || strings.HasPrefix(rpcURL, "/") {
		return nil
	}
	u, err := url.Parse(rpcURL)
	if err != nil {
		return fmt.Errorf("parse rpc url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return nil
	case "http", "https":
		return fmt.Errorf("rpc url %s://%s cannot subscribe to logs, use a websocket or ipc endpoint", u.Scheme, u.Host)
	default:
		return fmt.Errorf("unsupported rpc scheme %q", u.Scheme)
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// SubscribeLogs streams logs matching the query into ch until the
// subscription is unsubscribed or fails.
func (c *Client) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.ethClient.SubscribeFilterLogs(ctx, query, ch)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
