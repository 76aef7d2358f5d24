package ethereum

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"embed"
	"fmt"
	"math/big"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

//go:embed abi/VaultManager.json
var content embed.FS

var _ types.VaultChain = (*Ethereum)(nil)

// rpcBackend is the subset of ethclient.Client the chain uses.
type rpcBackend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

type Ethereum struct {
	// from config
	name                 string
	chainID              int64
	domain               types.Domain
	rpcURL               string
	vaultManagerAddress  string
	privateKey           *ecdsa.PrivateKey
	signerAddress        string
	maxRetries           int
	retryIntervalSeconds int
	confirmationTimeout  time.Duration
	receiptPollInterval  time.Duration

	vaultManagerABI abi.ABI

	mu sync.Mutex

	rpcClient    rpcBackend
	vaultManager *bind.BoundContract

	sequenceMap *types.SequenceMap
	metrics     *relayer.PromMetrics
}

func NewChain(
	name string,
	domain types.Domain,
	chainID int64,
	rpcURL string,
	vaultManagerAddress string,
	privateKey string,
	maxRetries int,
	retryIntervalSeconds int,
	confirmationTimeoutSeconds int,
) (*Ethereum, error) {
	if !common.IsHexAddress(vaultManagerAddress) {
		return nil, fmt.Errorf("chain %s: invalid vault manager address %q", name, vaultManagerAddress)
	}
	privEcdsaKey, signerAddress, err := GetEcdsaKeyAddress(privateKey)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", name, err)
	}

	raw, err := content.ReadFile("abi/VaultManager.json")
	if err != nil {
		return nil, fmt.Errorf("unable to read VaultManager abi: %w", err)
	}
	vaultManagerABI, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unable to parse VaultManager abi: %w", err)
	}

	if confirmationTimeoutSeconds <= 0 {
		confirmationTimeoutSeconds = 60
	}

	return &Ethereum{
		name:                 name,
		chainID:              chainID,
		domain:               domain,
		rpcURL:               rpcURL,
		vaultManagerAddress:  common.HexToAddress(vaultManagerAddress).Hex(),
		privateKey:           privEcdsaKey,
		signerAddress:        signerAddress,
		maxRetries:           maxRetries,
		retryIntervalSeconds: retryIntervalSeconds,
		confirmationTimeout:  time.Duration(confirmationTimeoutSeconds) * time.Second,
		receiptPollInterval:  2 * time.Second,
		vaultManagerABI:      vaultManagerABI,
	}, nil
}

func (e *Ethereum) Name() string {
	return e.name
}

func (e *Ethereum) Domain() types.Domain {
	return e.domain
}

func (e *Ethereum) ChainID() int64 {
	return e.chainID
}

func (e *Ethereum) VaultManager() string {
	return e.vaultManagerAddress
}

func (e *Ethereum) SignerAddress() string {
	return e.signerAddress
}

// ConfirmationTimeout bounds every WaitForConfirmation call on this chain.
func (e *Ethereum) ConfirmationTimeout() time.Duration {
	return e.confirmationTimeout
}

func (e *Ethereum) InitializeClients(ctx context.Context, logger log.Logger) error {
	client, err := ethclient.DialContext(ctx, e.rpcURL)
	if err != nil {
		return fmt.Errorf("unable to initialize rpc ethereum client; err: %w", err)
	}
	e.setBackend(client)

	logger.Info("Initialized ethereum client", "chain", e.name, "chain_id", e.chainID, "vault_manager", e.vaultManagerAddress)
	return nil
}

func (e *Ethereum) setBackend(client rpcBackend) {
	e.rpcClient = client
	e.vaultManager = bind.NewBoundContract(common.HexToAddress(e.vaultManagerAddress), e.vaultManagerABI, client, client, client)
}

func (e *Ethereum) CloseClients() error {
	if e.rpcClient != nil {
		e.rpcClient.Close()
	}
	return nil
}
