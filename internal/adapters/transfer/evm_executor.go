package transfer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/viralforge/deal-agents/internal/domain"
)

const transferGasLimit = 100000

// Backend is the slice of an Ethereum JSON-RPC client the executor needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

type Config struct {
	PrivateKeyHex string
	SenderAddress string
	// RPCURLs overrides the default endpoint per network name.
	RPCURLs map[string]string
	Dial    DialFunc
}

// EVMExecutor submits ERC-20 transfer calls signed with a single hot wallet.
type EVMExecutor struct {
	key     *ecdsa.PrivateKey
	sender  common.Address
	rpcURLs map[string]string
	dial    DialFunc

	mu       sync.Mutex
	backends map[string]Backend
}

func NewEVMExecutor(cfg Config) (*EVMExecutor, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x")
	if keyHex == "" {
		return nil, domain.ErrTransferNotConfigured
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)
	if cfg.SenderAddress != "" {
		if !common.IsHexAddress(cfg.SenderAddress) {
			return nil, fmt.Errorf("invalid sender address %q", cfg.SenderAddress)
		}
		if common.HexToAddress(cfg.SenderAddress) != sender {
			return nil, fmt.Errorf("private key does not control sender %s", cfg.SenderAddress)
		}
	}
	dial := cfg.Dial
	if dial == nil {
		dial = func(ctx context.Context, rpcURL string) (Backend, error) {
			return ethclient.DialContext(ctx, rpcURL)
		}
	}
	return &EVMExecutor{
		key:      key,
		sender:   sender,
		rpcURLs:  cfg.RPCURLs,
		dial:     dial,
		backends: map[string]Backend{},
	}, nil
}

func (e *EVMExecutor) Sender() string {
	return e.sender.Hex()
}

// Transfer submits exactly one transaction. Once it has been sent, any later
// failure is reported as a *domain.TransferError carrying its hash.
func (e *EVMExecutor) Transfer(ctx context.Context, instruction domain.PaymentInstruction) (domain.TransferReceipt, error) {
	if !common.IsHexAddress(instruction.Recipient) || !common.IsHexAddress(instruction.TokenAddress) {
		return domain.TransferReceipt{}, fmt.Errorf("%w: recipient or token address is not a hex address", domain.ErrInvalidInput)
	}
	amount, ok := new(big.Int).SetString(instruction.AmountBaseUnits, 10)
	if !ok || amount.Sign() < 0 {
		return domain.TransferReceipt{}, fmt.Errorf("%w: amount %q is not a base-unit integer", domain.ErrInvalidInput, instruction.AmountBaseUnits)
	}
	backend, err := e.backendFor(ctx, instruction.Network)
	if err != nil {
		return domain.TransferReceipt{}, err
	}

	nonce, err := backend.PendingNonceAt(ctx, e.sender)
	if err != nil {
		return domain.TransferReceipt{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.TransferReceipt{}, fmt.Errorf("suggest gas price: %w", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return domain.TransferReceipt{}, fmt.Errorf("chain id: %w", err)
	}

	token := common.HexToAddress(instruction.TokenAddress)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Value:    big.NewInt(0),
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
		Data:     transferCalldata(common.HexToAddress(instruction.Recipient), amount),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), e.key)
	if err != nil {
		return domain.TransferReceipt{}, fmt.Errorf("sign transaction: %w", err)
	}
	// A send error does not prove the node dropped the transaction, so the
	// hash travels with it for reconciliation.
	txHash := signed.Hash().Hex()
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return domain.TransferReceipt{}, &domain.TransferError{TxHash: txHash, Err: fmt.Errorf("send transaction: %w", err)}
	}
	slog.Default().InfoContext(ctx, "transfer submitted",
		"module", "adapters.transfer",
		"layer", "adapter",
		"operation", "transfer",
		"outcome", "submitted",
		"network", instruction.Network,
		"transaction_hash", txHash,
	)

	receipt, err := bind.WaitMined(ctx, backend, signed)
	if err != nil {
		return domain.TransferReceipt{}, &domain.TransferError{TxHash: txHash, Err: fmt.Errorf("wait for receipt: %w", err)}
	}
	status := domain.TransferStatusReverted
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = domain.TransferStatusSuccess
	}
	out := domain.TransferReceipt{
		TxHash:  txHash,
		GasUsed: receipt.GasUsed,
		Status:  status,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

func (e *EVMExecutor) backendFor(ctx context.Context, network string) (Backend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if backend, ok := e.backends[network]; ok {
		return backend, nil
	}
	rpcURL := e.rpcURLs[network]
	if rpcURL == "" {
		known, ok := domain.LookupNetwork(network)
		if !ok {
			return nil, fmt.Errorf("%w: unknown network %q", domain.ErrInvalidInput, network)
		}
		rpcURL = known.RPCURL
	}
	backend, err := e.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network, err)
	}
	if backend == nil {
		return nil, errors.New("dial returned no backend")
	}
	e.backends[network] = backend
	return backend, nil
}

func (e *EVMExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for network, backend := range e.backends {
		if closer, ok := backend.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(e.backends, network)
	}
}

var transferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// transferCalldata encodes an ERC-20 transfer(address,uint256) call.
func transferCalldata(recipient common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(recipient.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
