package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	anchorGasLimit = 100_000
	rpcTimeout     = 15 * time.Second
)

// EthereumAnchorer writes digests as calldata of zero-value self-transfers
// on an Ethereum network (Sepolia by default). It holds a single account,
// so nonce acquisition is serialized through submitMu.
type EthereumAnchorer struct {
	client    *ethclient.Client
	privKey   *ecdsa.PrivateKey
	address   common.Address
	chainID   *big.Int
	connected bool
	logger    *slog.Logger

	submitMu chan struct{}
}

type EthereumConfig struct {
	RPCURL        string
	PrivateKeyHex string
	ChainID       int64
}

// NewEthereumAnchorer dials the RPC endpoint once. If the endpoint is
// unreachable the anchorer stays permanently disconnected for the process
// lifetime: Anchor and Status short-circuit without network calls.
func NewEthereumAnchorer(ctx context.Context, cfg EthereumConfig) (*EthereumAnchorer, error) {
	privKey, err := crypto.HexToECDSA(cfg.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}

	a := &EthereumAnchorer{
		privKey:  privKey,
		address:  crypto.PubkeyToAddress(privKey.PublicKey),
		chainID:  big.NewInt(cfg.ChainID),
		logger:   slog.Default(),
		submitMu: make(chan struct{}, 1),
	}

	dialCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		a.logger.Error("ledger endpoint unreachable, anchoring disabled", "error", err)
		return a, nil
	}

	block, err := client.BlockNumber(dialCtx)
	if err != nil {
		a.logger.Error("ledger connectivity probe failed, anchoring disabled", "error", err)
		return a, nil
	}

	a.client = client
	a.connected = true
	a.logger.Info("connected to ledger", "block", block, "account", a.address.Hex())
	return a, nil
}

func (a *EthereumAnchorer) Connected() bool {
	return a.connected
}

// Anchor submits one transaction carrying the digest and returns its hash.
// A zero account balance or any submission failure yields an empty tx id:
// the document stays valid and fingerprinted locally, just unanchored.
// At most one submission per call, never retried.
func (a *EthereumAnchorer) Anchor(ctx context.Context, digest string) (string, error) {
	if !a.connected {
		a.logger.Warn("ledger unavailable, skipping anchor")
		return "", nil
	}

	// Single account, single nonce sequence: one in-flight submission.
	select {
	case a.submitMu <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-a.submitMu }()

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	balance, err := a.client.BalanceAt(ctx, a.address, nil)
	if err != nil {
		a.logger.Warn("balance check failed, skipping anchor", "error", err)
		return "", nil
	}
	if balance.Sign() == 0 {
		a.logger.Warn("ledger account has zero balance, skipping anchor", "account", a.address.Hex())
		return "", nil
	}

	nonce, err := a.client.PendingNonceAt(ctx, a.address)
	if err != nil {
		a.logger.Warn("nonce fetch failed, skipping anchor", "error", err)
		return "", nil
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		a.logger.Warn("gas price fetch failed, skipping anchor", "error", err)
		return "", nil
	}
	// 10% headroom so the self-transfer is not stuck behind base fee moves.
	gasPrice.Div(gasPrice.Mul(gasPrice, big.NewInt(11)), big.NewInt(10))

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &a.address,
		Value:    big.NewInt(0),
		Gas:      anchorGasLimit,
		GasPrice: gasPrice,
		Data:     []byte(digest),
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(a.chainID), a.privKey)
	if err != nil {
		return "", fmt.Errorf("sign anchor transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		a.logger.Warn("anchor submission failed", "error", err)
		return "", nil
	}

	txID := signed.Hash().Hex()
	a.logger.Info("anchored digest", "tx", txID, "nonce", nonce)
	return txID, nil
}

// Status never fails outright: when the balance or height sub-call errors
// the result degrades to partial info with the error attached.
func (a *EthereumAnchorer) Status(ctx context.Context) Status {
	if !a.connected {
		return Status{Connected: false}
	}

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	st := Status{Connected: true}

	block, err := a.client.BlockNumber(ctx)
	if err != nil {
		st.Err = err.Error()
		return st
	}
	st.BlockNumber = block

	balance, err := a.client.BalanceAt(ctx, a.address, nil)
	if err != nil {
		st.Err = err.Error()
		return st
	}
	st.Balance = weiToEther(balance)
	return st
}

func weiToEther(wei *big.Int) string {
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return ether.Text('f', 6)
}
