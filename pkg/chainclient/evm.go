package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/contracts"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
)

// EVMConfig configures an EVM chain connection
type EVMConfig struct {
	ChainID       int
	RPCURL        string
	EscrowAddress string
	PrivateKey    string
	GasMultiplier float64
	TokenDecimals int32
	MinedTimeout  time.Duration
}

// EVMClient submits settlement actions to an Escrow contract on one EVM chain
type EVMClient struct {
	chainID       int
	client        *ethclient.Client
	escrow        *contracts.Escrow
	auth          *bind.TransactOpts
	nonces        *NonceManager
	gasMultiplier float64
	tokenDecimals int32
	minedTimeout  time.Duration
	logger        logger.Logger

	// serializes use of auth between concurrent submissions
	mu sync.Mutex
}

var _ Client = (*EVMClient)(nil)

// NewEVMClient dials the chain and binds the escrow contract
func NewEVMClient(ctx context.Context, cfg EVMConfig, log logger.Logger) (*EVMClient, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.GasMultiplier <= 0 {
		cfg.GasMultiplier = 1.1
	}
	if cfg.TokenDecimals <= 0 {
		cfg.TokenDecimals = 18
	}
	if cfg.MinedTimeout <= 0 {
		cfg.MinedTimeout = 2 * time.Minute
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %v", cfg.ChainID, err)
	}

	escrow, err := contracts.NewEscrow(common.HexToAddress(cfg.EscrowAddress), client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize escrow contract: %v", err)
	}

	c := &EVMClient{
		chainID:       cfg.ChainID,
		client:        client,
		escrow:        escrow,
		gasMultiplier: cfg.GasMultiplier,
		tokenDecimals: cfg.TokenDecimals,
		minedTimeout:  cfg.MinedTimeout,
		logger:        log,
	}

	if cfg.PrivateKey != "" {
		auth, err := createAuthenticator(ctx, client, cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create authenticator: %v", err)
		}
		c.auth = auth
		c.nonces = NewNonceManager(cfg.ChainID, client, auth.From, log)
	}

	return c, nil
}

// Submit sends the transaction for action and waits for it to be mined
func (c *EVMClient) Submit(ctx context.Context, chainID int, action Action, args Args) (SubmitResult, error) {
	if chainID != c.chainID {
		return SubmitResult{}, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	if c.auth == nil {
		return SubmitResult{}, fmt.Errorf("no signer configured for chain %d", chainID)
	}

	if dropped := c.nonces.DropStale(c.minedTimeout); len(dropped) > 0 {
		c.logger.NoticeWithChain(c.chainID, "Dropped %d stale transactions, resyncing nonce", len(dropped))
	}

	c.mu.Lock()
	opts, err := c.transactOpts(ctx)
	if err != nil {
		c.mu.Unlock()
		return SubmitResult{}, err
	}
	nonce, err := c.nonces.Next(ctx)
	if err != nil {
		c.mu.Unlock()
		return SubmitResult{}, err
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)
	tx, err := c.send(opts, action, args)
	if err != nil {
		c.nonces.Release(nonce)
		c.mu.Unlock()
		return SubmitResult{}, fmt.Errorf("failed to send %s: %v", action, err)
	}
	c.nonces.Track(nonce, tx.Hash(), args.OrderID)
	c.mu.Unlock()

	c.logger.DebugWithChain(c.chainID, "Sent %s for order %s: %s", action, args.OrderID, tx.Hash().Hex())

	minedCtx, cancel := context.WithTimeout(ctx, c.minedTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(minedCtx, c.client, tx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed waiting for %s to be mined: %v", action, err)
	}
	c.nonces.Confirm(nonce)

	return SubmitResult{
		TxRef:       tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

func (c *EVMClient) send(opts *bind.TransactOpts, action Action, args Args) (*types.Transaction, error) {
	orderHash := common.HexToHash(args.OrderHash)

	switch action {
	case ActionLockFunds:
		return c.escrow.LockFunds(opts, orderHash, common.HexToHash(args.HashLock),
			common.HexToAddress(args.Token), c.baseUnits(args.Amount), big.NewInt(args.TimeLockAt.Unix()))
	case ActionInitiateBridge:
		return c.escrow.InitiateBridge(opts, orderHash, big.NewInt(int64(args.DstChainID)))
	case ActionVerifyBridge:
		return c.escrow.VerifyBridge(opts, orderHash, big.NewInt(int64(args.SrcChainID)))
	case ActionExecuteSwap:
		return c.escrow.ExecuteSwap(opts, orderHash, common.HexToAddress(args.Token), c.baseUnits(args.Amount))
	case ActionReleaseFunds:
		return c.escrow.ReleaseFunds(opts, orderHash, common.HexToAddress(args.Recipient))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
}

// Read answers queries against the escrow contract or the chain head
func (c *EVMClient) Read(ctx context.Context, chainID int, query Query) (string, error) {
	if chainID != c.chainID {
		return "", fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}

	switch query.Kind {
	case QueryEscrowAddress:
		addr, err := c.escrow.EscrowOf(&bind.CallOpts{Context: ctx}, common.HexToHash(query.OrderHash))
		if err != nil {
			return "", fmt.Errorf("failed to read escrow address: %v", err)
		}
		return addr.Hex(), nil
	case QueryBlockNumber:
		n, err := c.client.BlockNumber(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get block number: %v", err)
		}
		return strconv.FormatUint(n, 10), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownQuery, query.Kind)
}

// transactOpts copies the signer with a fresh gas price and the caller's context
func (c *EVMClient) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	gasPrice, err := c.suggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	opts := *c.auth
	opts.Context = ctx
	opts.GasPrice = gasPrice
	return &opts, nil
}

// suggestGasPrice applies the configured multiplier to the network gas price
func (c *EVMClient) suggestGasPrice(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gasPrice, err := c.client.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %v", err)
	}
	return applyGasMultiplier(gasPrice, c.gasMultiplier), nil
}

func (c *EVMClient) baseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(c.tokenDecimals).BigInt()
}

// Close releases the RPC connection
func (c *EVMClient) Close() {
	c.client.Close()
}

func applyGasMultiplier(gasPrice *big.Int, multiplier float64) *big.Int {
	multiplied := new(big.Float).Mul(new(big.Float).SetInt(gasPrice), big.NewFloat(multiplier))
	result := new(big.Int)
	multiplied.Int(result)
	return result
}

func createAuthenticator(ctx context.Context, client *ethclient.Client, privateKeyHex string) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %v", err)
	}
	return auth, nil
}
