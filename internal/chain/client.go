package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/model"
)

// Client wraps go-ethereum and the hand-bound allocation-exchange
// contract, mirroring the teacher's internal/chain/client.go Client —
// same eth/contract/address/chainID shape, signer key included so it can
// both estimate and send.
type Client struct {
	eth       *ethclient.Client
	contract  *boundAllocationExchange
	address   common.Address
	chainID   *big.Int
	signerKey *ecdsa.PrivateKey
}

// NewClient dials the configured RPC endpoint, binds the
// allocation-exchange contract at contractAddr, and holds the operator
// key used to sign redeemMany transactions.
func NewClient(rpcURL, contractAddr string, chainID int64, signerKey *ecdsa.PrivateKey) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}
	addr := common.HexToAddress(contractAddr)
	contract, err := newBoundAllocationExchange(addr, eth)
	if err != nil {
		return nil, fmt.Errorf("chain: bind allocation exchange: %w", err)
	}
	return &Client{
		eth:       eth,
		contract:  contract,
		address:   addr,
		chainID:   big.NewInt(chainID),
		signerKey: signerKey,
	}, nil
}

// EthClient returns the underlying go-ethereum client, for wiring a
// SigningTransactionManager in cmd/collector/main.go.
func (c *Client) EthClient() *ethclient.Client { return c.eth }

func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.signerKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: build transact opts: %w", err)
	}
	auth.Context = ctx
	return auth, nil
}

func (c *Client) EstimateRedeemMany(ctx context.Context, entries []RedemptionEntry) (uint64, error) {
	parsed, err := parsedAllocationExchangeABI()
	if err != nil {
		return 0, err
	}
	ids, amounts, sigs, err := packEntries(entries)
	if err != nil {
		return 0, err
	}
	data, err := parsed.Pack("redeemMany", ids, amounts, sigs)
	if err != nil {
		return 0, fmt.Errorf("chain: pack redeemMany: %w", err)
	}
	addr := c.address
	return c.eth.EstimateGas(ctx, ethereum.CallMsg{To: &addr, Data: data})
}

func (c *Client) SendRedeemMany(ctx context.Context, entries []RedemptionEntry, gasLimit uint64) (*gethtypes.Transaction, error) {
	ids, amounts, sigs, err := packEntries(entries)
	if err != nil {
		return nil, err
	}
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = gasLimit
	tx, err := c.contract.contract.Transact(opts, "redeemMany", ids, amounts, sigs)
	if err != nil {
		return nil, fmt.Errorf("chain: redeemMany tx: %w", err)
	}
	return tx, nil
}

func (c *Client) AllocationsRedeemed(ctx context.Context, allocation model.AllocationID) (bool, error) {
	id, err := toBytes20(string(allocation))
	if err != nil {
		return false, err
	}
	var out bool
	results := []interface{}{&out}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.contract.Call(opts, &results, "allocationsRedeemed", id); err != nil {
		return false, fmt.Errorf("chain: allocationsRedeemed(%s): %w", allocation, err)
	}
	return out, nil
}

func packEntries(entries []RedemptionEntry) (ids [][20]byte, amounts []*big.Int, sigs []byte, err error) {
	ids = make([][20]byte, len(entries))
	amounts = make([]*big.Int, len(entries))
	var sigHex strings.Builder
	for i, e := range entries {
		id, convErr := toBytes20(string(e.AllocationID))
		if convErr != nil {
			return nil, nil, nil, convErr
		}
		ids[i] = id
		amounts[i] = e.Amount
		sigHex.WriteString(strings.TrimPrefix(e.Signature, "0x"))
	}
	return ids, amounts, common.FromHex("0x" + sigHex.String()), nil
}

// SigningTransactionManager is the default TransactionManager: it runs
// the estimate/send closures handed to it and waits for the result with
// bind.WaitMined, the same flow as the teacher's SettleFeesWithTEE. It
// maps revert reasons it recognizes to the paused/unauthorized sentinels
// and returns every other revert as an error.
type SigningTransactionManager struct {
	eth *ethclient.Client
}

func NewSigningTransactionManager(eth *ethclient.Client) *SigningTransactionManager {
	return &SigningTransactionManager{eth: eth}
}

func (m *SigningTransactionManager) Submit(ctx context.Context, estimate GasEstimateFunc, send SendFunc, log *zap.Logger) (*SubmitResult, error) {
	gasLimit, err := estimate(ctx)
	if err != nil {
		if sentinel, ok := classifyRevert(err); ok {
			return &SubmitResult{Sentinel: sentinel}, nil
		}
		return nil, fmt.Errorf("chain: estimate gas: %w", err)
	}

	tx, err := send(ctx, gasLimit)
	if err != nil {
		if sentinel, ok := classifyRevert(err); ok {
			return &SubmitResult{Sentinel: sentinel}, nil
		}
		return nil, fmt.Errorf("chain: send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, m.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait mined %s: %w", tx.Hash(), err)
	}
	if receipt.Status == gethtypes.ReceiptStatusFailed {
		log.Warn("redemption transaction reverted", zap.String("tx", tx.Hash().Hex()))
		return nil, fmt.Errorf("chain: tx %s reverted", tx.Hash().Hex())
	}
	return &SubmitResult{Receipt: receipt}, nil
}

// classifyRevert looks for the two revert reasons the allocation-exchange
// contract uses to signal a paused or unauthorized exchange rather than a
// fault; the caller retries such a batch on a later cycle.
func classifyRevert(err error) (Sentinel, bool) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "paused"):
		return SentinelPaused, true
	case strings.Contains(msg, "unauthorized"):
		return SentinelUnauthorized, true
	default:
		return SentinelNone, false
	}
}
