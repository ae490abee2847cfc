package trade

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"tokenSniper/internal/chain"
	"tokenSniper/internal/model"
)

// Config holds the fixed trade parameters: one input token, one amount,
// one direction.
type Config struct {
	Router       common.Address
	TokenIn      common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Deadline     time.Duration
	Tier         Tier
}

// Trader executes the one-shot swap through the V2 router. It satisfies
// detect.Action.
type Trader struct {
	chain     *chain.Client
	key       *ecdsa.PrivateKey
	recipient common.Address
	chainID   *big.Int
	cfg       Config
	gas       GasConfig
	routerABI abi.ABI
	erc20ABI  abi.ABI
	logger    *zap.Logger
}

// NewTrader builds a Trader and pre-resolves everything the hot path
// needs, so detection-to-submission latency stays minimal.
func NewTrader(chainClient *chain.Client, key *ecdsa.PrivateKey, chainID *big.Int, cfg Config, logger *zap.Logger) (*Trader, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	if cfg.AmountIn == nil || cfg.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("amount in must be greater than zero")
	}
	if cfg.AmountOutMin == nil {
		cfg.AmountOutMin = big.NewInt(1)
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gas, err := TierGasConfig(cfg.Tier)
	if err != nil {
		return nil, err
	}

	routerABI, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	erc20ABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &Trader{
		chain:     chainClient,
		key:       key,
		recipient: crypto.PubkeyToAddress(key.PublicKey),
		chainID:   chainID,
		cfg:       cfg,
		gas:       gas,
		routerABI: routerABI,
		erc20ABI:  erc20ABI,
		logger:    logger,
	}, nil
}

// Recipient returns the trading account address.
func (t *Trader) Recipient() common.Address {
	return t.recipient
}

// Act starts the swap for the token and returns immediately; the outcome
// arrives on the returned channel once, whatever happens.
func (t *Trader) Act(ctx context.Context, token common.Address) <-chan model.TradeResult {
	results := make(chan model.TradeResult, 1)
	go func() {
		results <- t.swap(ctx, token)
	}()
	return results
}

func (t *Trader) swap(ctx context.Context, token common.Address) model.TradeResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Deadline)
	defer cancel()

	nonce, err := t.chain.PendingNonceAt(ctx, t.recipient)
	if err != nil {
		return failure(start, fmt.Errorf("pending nonce: %w", err))
	}

	input, err := t.routerABI.Pack("swapExactTokensForTokens",
		t.cfg.AmountIn,
		t.cfg.AmountOutMin,
		[]common.Address{t.cfg.TokenIn, token},
		t.recipient,
		deadlineFromNow(t.cfg.Deadline),
	)
	if err != nil {
		return failure(start, fmt.Errorf("pack swap call: %w", err))
	}

	signed, err := t.signTx(nonce, t.cfg.Router, input)
	if err != nil {
		return failure(start, fmt.Errorf("sign swap: %w", err))
	}

	if err := t.chain.SendTransaction(ctx, signed); err != nil {
		return failure(start, fmt.Errorf("send swap: %w", err))
	}

	t.logger.Info("swap submitted",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount_in", t.cfg.AmountIn.String()),
	)

	receipt, err := t.waitMined(ctx, signed.Hash())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.TradeResult{
				Expired: true,
				TxHash:  signed.Hash().Hex(),
				Elapsed: time.Since(start),
				Reason:  "trade deadline exceeded",
			}
		}
		return failure(start, fmt.Errorf("wait mined: %w", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return model.TradeResult{
			TxHash:  signed.Hash().Hex(),
			GasUsed: receipt.GasUsed,
			Elapsed: time.Since(start),
			Reason:  "swap reverted",
		}
	}

	return model.TradeResult{
		Ok:      true,
		TxHash:  signed.Hash().Hex(),
		GasUsed: receipt.GasUsed,
		Elapsed: time.Since(start),
	}
}

// Allowance returns the router's current spend allowance for the input
// token.
func (t *Trader) Allowance(ctx context.Context) (*big.Int, error) {
	input, err := t.erc20ABI.Pack("allowance", t.recipient, t.cfg.Router)
	if err != nil {
		return nil, fmt.Errorf("pack allowance call: %w", err)
	}

	tokenIn := t.cfg.TokenIn
	output, err := t.chain.CallContract(ctx, ethereum.CallMsg{To: &tokenIn, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}

	values, err := t.erc20ABI.Unpack("allowance", output)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", values[0])
	}
	return allowance, nil
}

// EnsureAllowance pre-authorizes the router to spend the input amount so
// the swap itself never waits on an approval. Called at startup, before
// detection begins.
func (t *Trader) EnsureAllowance(ctx context.Context) error {
	allowance, err := t.Allowance(ctx)
	if err != nil {
		return err
	}
	if allowance.Cmp(t.cfg.AmountIn) >= 0 {
		t.logger.Info("router allowance sufficient", zap.String("allowance", allowance.String()))
		return nil
	}

	nonce, err := t.chain.PendingNonceAt(ctx, t.recipient)
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}

	input, err := t.erc20ABI.Pack("approve", t.cfg.Router, math.MaxBig256)
	if err != nil {
		return fmt.Errorf("pack approve call: %w", err)
	}

	signed, err := t.signTx(nonce, t.cfg.TokenIn, input)
	if err != nil {
		return fmt.Errorf("sign approve: %w", err)
	}
	if err := t.chain.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send approve: %w", err)
	}

	t.logger.Info("approval submitted", zap.String("tx_hash", signed.Hash().Hex()))

	receipt, err := t.waitMined(ctx, signed.Hash())
	if err != nil {
		return fmt.Errorf("wait approve: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve reverted: %s", signed.Hash().Hex())
	}

	t.logger.Info("approval confirmed", zap.Uint64("block_number", receipt.BlockNumber.Uint64()))
	return nil
}

func (t *Trader) signTx(nonce uint64, to common.Address, data []byte) (*types.Transaction, error) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		GasTipCap: t.gas.PriorityFee,
		GasFeeCap: t.gas.MaxFee,
		Gas:       t.gas.GasLimit,
		To:        &to,
		Data:      data,
	})
	return types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
}

func (t *Trader) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := t.chain.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			t.logger.Debug("receipt poll failed", zap.Error(err), zap.String("tx_hash", txHash.Hex()))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func failure(start time.Time, err error) model.TradeResult {
	return model.TradeResult{
		Elapsed: time.Since(start),
		Reason:  err.Error(),
	}
}

func deadlineFromNow(d time.Duration) *big.Int {
	return big.NewInt(time.Now().Add(d).Unix())
}
