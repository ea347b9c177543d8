package core

// chain_client.go wraps a remote EVM-compatible JSON-RPC node for the two
// primary-chain contract calls the pipeline needs (spec §4.5, C5). Grounded
// on the teacher's go-ethereum usage (core/transactions.go's common.Address
// conversions, crypto signing) generalized from local tx hashing to a real
// JSON-RPC transport via go-ethereum's rpc and accounts/abi packages, which
// are part of the already-wired go-ethereum dependency even though the
// teacher itself never dials a remote node.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// DefaultGasLimitCircuitBreaker is the default maximum estimated gas a
// submission may consume before the client refuses it (spec §4.5).
const DefaultGasLimitCircuitBreaker = 180_000

const chainABIJSON = `[
  {"type":"function","name":"registerSession","inputs":[
    {"name":"sessionId","type":"string"},
    {"name":"manifestHash","type":"bytes32"},
    {"name":"startedAt","type":"uint64"},
    {"name":"owner","type":"address"},
    {"name":"merkleRoot","type":"bytes32"},
    {"name":"chunkCount","type":"uint64"}
  ],"outputs":[]},
  {"type":"function","name":"storeChunkMetadata","inputs":[
    {"name":"sessionId","type":"string"},
    {"name":"chunkIdx","type":"uint64"},
    {"name":"ciphertextHash","type":"bytes32"},
    {"name":"sizeBytes","type":"uint64"}
  ],"outputs":[]}
]`

// TxResult is the result shape of a submission (spec §4.5).
type TxResult struct {
	TxID        string `json:"txid"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Status      string `json:"status"` // success | failed | pending
}

// ChainClient is a JSON-RPC wrapper over a remote EVM-compatible node
// (spec §4.5).
type ChainClient struct {
	rpcClient         *rpc.Client
	chainABI          abi.ABI
	anchorsAddress    common.Address
	chunkStoreAddress common.Address
	fromAddress       common.Address
	gasLimitBreaker   uint64
	callTimeout       time.Duration
	logger            *logrus.Logger
}

// NewChainClient dials rpcURL and prepares the ABI used to encode
// registerSession/storeChunkMetadata calls.
func NewChainClient(ctx context.Context, rpcURL string, anchorsAddress, chunkStoreAddress, fromAddress string, gasLimitBreaker uint64, callTimeout time.Duration, logger *logrus.Logger) (*ChainClient, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if gasLimitBreaker == 0 {
		gasLimitBreaker = DefaultGasLimitCircuitBreaker
	}
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, chainUnavailableErrorf(err, "chain_client: dial %s", rpcURL)
	}
	parsedABI, err := abi.JSON(strings.NewReader(chainABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chain_client: parse ABI: %w", err)
	}
	anchorsAddr, err := ParseAddress(anchorsAddress)
	if err != nil {
		return nil, fmt.Errorf("chain_client: anchors address: %w", err)
	}
	chunkStoreAddr, err := ParseAddress(chunkStoreAddress)
	if err != nil {
		return nil, fmt.Errorf("chain_client: chunk store address: %w", err)
	}
	from, err := ParseAddress(fromAddress)
	if err != nil {
		return nil, fmt.Errorf("chain_client: from address: %w", err)
	}
	return &ChainClient{
		rpcClient:         client,
		chainABI:          parsedABI,
		anchorsAddress:    common.BytesToAddress(anchorsAddr.Bytes()),
		chunkStoreAddress: common.BytesToAddress(chunkStoreAddr.Bytes()),
		fromAddress:       common.BytesToAddress(from.Bytes()),
		gasLimitBreaker:   gasLimitBreaker,
		callTimeout:       callTimeout,
		logger:            logger,
	}, nil
}

type ethCallMsg struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// estimateAndSend encodes data, checks the gas circuit breaker, and submits
// the call; shared by RegisterSession and StoreChunkMetadata.
func (c *ChainClient) estimateAndSend(ctx context.Context, to common.Address, data []byte) (*TxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	msg := ethCallMsg{From: c.fromAddress, To: to, Data: data}

	var estimateHex hexutil.Uint64
	if err := c.rpcClient.CallContext(ctx, &estimateHex, "eth_estimateGas", msg); err != nil {
		return nil, chainUnavailableErrorf(err, "chain_client: estimateGas")
	}
	if uint64(estimateHex) > c.gasLimitBreaker {
		return nil, gasLimitExceededErrorf("chain_client: estimated gas %d exceeds circuit breaker %d", uint64(estimateHex), c.gasLimitBreaker)
	}

	var txHash common.Hash
	if err := c.rpcClient.CallContext(ctx, &txHash, "eth_sendTransaction", msg); err != nil {
		return nil, chainUnavailableErrorf(err, "chain_client: sendTransaction")
	}

	c.logger.WithFields(logrus.Fields{"to": to.Hex(), "gasEstimate": uint64(estimateHex)}).Info("chain_client: submitted transaction")

	return &TxResult{TxID: txHash.Hex(), GasUsed: uint64(estimateHex), Status: "pending"}, nil
}

func (c *ChainClient) timeout() time.Duration {
	if c.callTimeout <= 0 {
		return 30 * time.Second
	}
	return c.callTimeout
}

// RegisterSession submits registerSession(sessionId, manifestHash, startedAt,
// owner, merkleRoot, chunkCount) (spec §4.5).
func (c *ChainClient) RegisterSession(ctx context.Context, sessionID string, manifestHash Hash, startedAt time.Time, owner Address, merkleRoot Hash, chunkCount int) (*TxResult, error) {
	data, err := c.chainABI.Pack("registerSession",
		sessionID,
		[32]byte(manifestHash),
		uint64(startedAt.Unix()),
		common.BytesToAddress(owner.Bytes()),
		[32]byte(merkleRoot),
		uint64(chunkCount),
	)
	if err != nil {
		return nil, fmt.Errorf("chain_client: pack registerSession: %w", err)
	}
	return c.estimateAndSend(ctx, c.anchorsAddress, data)
}

// StoreChunkMetadata submits storeChunkMetadata(sessionId, chunkIdx,
// ciphertextHash, sizeBytes) (spec §4.5).
func (c *ChainClient) StoreChunkMetadata(ctx context.Context, sessionID string, chunkIdx int, ciphertextHash Hash, sizeBytes int64) (*TxResult, error) {
	data, err := c.chainABI.Pack("storeChunkMetadata",
		sessionID,
		uint64(chunkIdx),
		[32]byte(ciphertextHash),
		uint64(sizeBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("chain_client: pack storeChunkMetadata: %w", err)
	}
	return c.estimateAndSend(ctx, c.chunkStoreAddress, data)
}

// GetTransactionStatus polls for a receipt, returning "pending" until the
// node reports one (spec §4.5).
func (c *ChainClient) GetTransactionStatus(ctx context.Context, txid string) (status string, blockNumber *uint64, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var receipt struct {
		Status      hexutil.Uint64 `json:"status"`
		BlockNumber *hexutil.Big   `json:"blockNumber"`
	}
	if err := c.rpcClient.CallContext(ctx, &receipt, "eth_getTransactionReceipt", txid); err != nil {
		return "", nil, chainUnavailableErrorf(err, "chain_client: getTransactionReceipt")
	}
	if receipt.BlockNumber == nil {
		return "pending", nil, nil
	}
	bn := receipt.BlockNumber.ToInt().Uint64()
	if receipt.Status == 1 {
		return "success", &bn, nil
	}
	return "failed", &bn, nil
}
