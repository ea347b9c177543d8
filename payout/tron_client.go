package payout

// tron_client.go is a minimal net/http client against a TRON full node's
// HTTP API (no TRON SDK exists anywhere in the corpus; grounded on the
// teacher's core/chain_client-equivalent JSON-over-HTTP calling convention,
// generalized from JSON-RPC framing to TRON's plain REST endpoints). It
// covers exactly the surface the payout router needs: a grouped/looped
// TRC-20 transfer call, transaction status polling, and an account
// resources read.

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcutil/base58"
)

// AccountResources is the subset of TRON account resource accounting the
// payout router needs for its guardrail check (spec §4.10).
type AccountResources struct {
	EnergyAvailable    uint64
	BandwidthAvailable uint64
}

// TransferResult is the outcome of one TRC-20 transfer submission.
type TransferResult struct {
	TxID    string
	Success bool
	Message string
}

// TronClient talks to a single TRON full node over its HTTP API.
type TronClient struct {
	nodeURL      string
	usdtContract string
	fromAddress  string
	privateKey   string
	feeLimitSun  uint64
	httpClient   *http.Client
}

// NewTronClient constructs a client against nodeURL (a TRON full-node HTTP
// endpoint, e.g. https://api.trongrid.io). feeLimitSun defaults to 100 TRX
// (spec §4.10).
func NewTronClient(nodeURL, usdtContract, fromAddress, privateKey string, feeLimitSun uint64, timeout time.Duration) *TronClient {
	if feeLimitSun == 0 {
		feeLimitSun = DefaultFeeLimitSun
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TronClient{
		nodeURL:      nodeURL,
		usdtContract: usdtContract,
		fromAddress:  fromAddress,
		privateKey:   privateKey,
		feeLimitSun:  feeLimitSun,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type triggerSmartContractRequest struct {
	OwnerAddress     string `json:"owner_address"`
	ContractAddress  string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter        string `json:"parameter"`
	FeeLimit         uint64 `json:"fee_limit"`
	CallValue        int64  `json:"call_value"`
}

type triggerSmartContractResponse struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Txid string `json:"txid"`
}

// Transfer submits one USDT-TRC20 transfer(address,uint256) call via
// triggersmartcontract, amount in 6-decimal USDT units (spec §6.2).
func (c *TronClient) Transfer(ctx context.Context, recipient string, amount6Decimals uint64) (*TransferResult, error) {
	req := triggerSmartContractRequest{
		OwnerAddress:     c.fromAddress,
		ContractAddress:  c.usdtContract,
		FunctionSelector: "transfer(address,uint256)",
		Parameter:        encodeTransferParameter(recipient, amount6Decimals),
		FeeLimit:         c.feeLimitSun,
		CallValue:        0,
	}

	var resp triggerSmartContractResponse
	if err := c.post(ctx, "/wallet/triggersmartcontract", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result {
		return &TransferResult{Success: false, Message: resp.Result.Message}, nil
	}
	return &TransferResult{TxID: resp.Txid, Success: true}, nil
}

type transactionInfoResponse struct {
	ID      string `json:"id"`
	Receipt struct {
		Result string `json:"result"`
	} `json:"receipt"`
	BlockNumber int64 `json:"blockNumber"`
}

// TransactionStatus polls gettransactioninfobyid, returning pending |
// confirmed | failed (spec §4.10 checkPayoutStatus).
func (c *TronClient) TransactionStatus(ctx context.Context, txid string) (string, error) {
	var resp transactionInfoResponse
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": txid}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "pending", nil
	}
	if resp.Receipt.Result == "SUCCESS" {
		return "confirmed", nil
	}
	return "failed", nil
}

type accountResourceResponse struct {
	EnergyLimit  uint64 `json:"EnergyLimit"`
	EnergyUsed   uint64 `json:"EnergyUsed"`
	FreeNetLimit uint64 `json:"freeNetLimit"`
	FreeNetUsed  uint64 `json:"freeNetUsed"`
}

// AccountResources queries getaccountresource for available energy and
// bandwidth (spec §4.10 "resource guardrails").
func (c *TronClient) AccountResources(ctx context.Context, address string) (AccountResources, error) {
	var resp accountResourceResponse
	if err := c.post(ctx, "/wallet/getaccountresource", map[string]string{"address": address}, &resp); err != nil {
		return AccountResources{}, err
	}
	var energyAvail, bwAvail uint64
	if resp.EnergyLimit > resp.EnergyUsed {
		energyAvail = resp.EnergyLimit - resp.EnergyUsed
	}
	if resp.FreeNetLimit > resp.FreeNetUsed {
		bwAvail = resp.FreeNetLimit - resp.FreeNetUsed
	}
	return AccountResources{EnergyAvailable: energyAvail, BandwidthAvailable: bwAvail}, nil
}

func (c *TronClient) post(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tron_client: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tronUnavailableErrorf(err, "tron_client: request to %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return tronUnavailableErrorf(nil, "tron_client: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tron_client: decoding response from %s: %w", path, err)
	}
	return nil
}

// encodeTransferParameter ABI-encodes (address,uint256) for the TRC-20
// transfer call. TRON addresses base58-decode to 25 bytes
// (0x41 network prefix + 20-byte account id + 4-byte checksum); the ABI
// parameter wants the 20-byte account id left-padded to 32 bytes.
func encodeTransferParameter(recipientBase58 string, amount6Decimals uint64) string {
	decoded := base58.Decode(recipientBase58)
	var accountID []byte
	if len(decoded) >= 25 {
		accountID = decoded[1:21] // strip 0x41 prefix and 4-byte checksum
	} else {
		accountID = make([]byte, 20)
	}
	addrPart := fmt.Sprintf("%024x%s", 0, hex.EncodeToString(accountID))
	amountPart := fmt.Sprintf("%064x", amount6Decimals)
	return addrPart + amountPart
}
