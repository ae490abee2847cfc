package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenSniper/internal/chain"
	"tokenSniper/internal/config"
	"tokenSniper/internal/detect"
	"tokenSniper/internal/model"
	"tokenSniper/internal/storage"
	"tokenSniper/internal/trade"
)

func run(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	if cfg.Wanted == "" {
		return fmt.Errorf("wanted caller address is required")
	}
	if cfg.TokenIn == "" {
		return fmt.Errorf("input token address is required")
	}
	if cfg.AmountIn == "" {
		return fmt.Errorf("input amount is required")
	}

	filterCfg, err := buildFilterConfig(cfg)
	if err != nil {
		return err
	}
	classifierCfg, err := buildClassifierConfig(cfg)
	if err != nil {
		return err
	}
	tradeCfg, err := buildTradeConfig(cfg)
	if err != nil {
		return err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	trader, err := trade.NewTrader(chainClient, key, new(big.Int).SetUint64(cfg.ChainID), tradeCfg, logger)
	if err != nil {
		return err
	}

	// Pre-authorize the router before any detection so the swap path never
	// waits on an approval.
	if err := trader.EnsureAllowance(ctx); err != nil {
		return fmt.Errorf("ensure allowance: %w", err)
	}

	classifier := detect.NewClassifier(classifierCfg, detect.NewVerdictCache(), chainClient, logger)
	monitor := detect.NewMonitor(detect.MonitorConfig{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, detect.NewEventFilter(filterCfg), classifier, chainClient, trader, logger)

	logger.Info("sniper start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("wanted", cfg.Wanted),
		zap.String("unwanted", cfg.Unwanted),
		zap.Bool("verify", cfg.Verify),
		zap.String("gas_tier", cfg.GasTier),
		zap.String("recipient", trader.Recipient().Hex()),
	)

	if len(args) == 0 {
		return runLive(ctx, monitor, logger)
	}
	return runReplay(ctx, args, monitor, cfg, logger)
}

func runLive(ctx context.Context, monitor *detect.Monitor, logger *zap.Logger) error {
	decision, err := monitor.Live(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("monitoring stopped")
			return nil
		}
		return err
	}

	fmt.Println(decision.Candidate.Token.Hex())

	select {
	case result := <-decision.Outcome:
		logTradeResult(logger, decision.Candidate.Token.Hex(), result)
	case <-ctx.Done():
		logger.Warn("interrupted before trade completion",
			zap.String("token", decision.Candidate.Token.Hex()),
		)
	}
	return nil
}

func runReplay(ctx context.Context, args []string, monitor *detect.Monitor, cfg config.Config, logger *zap.Logger) error {
	fromBlock, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid from block: %s", args[0])
	}
	toBlock, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid to block: %s", args[1])
	}
	if fromBlock > toBlock {
		return fmt.Errorf("from block %d cannot be greater than to block %d", fromBlock, toBlock)
	}

	summary, err := monitor.Replay(ctx, fromBlock, toBlock)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("replay stopped")
			return nil
		}
		return err
	}

	for _, report := range summary.Reports {
		if report.Trade != nil {
			logTradeResult(logger, report.Token, *report.Trade)
		}
	}

	if len(summary.Reports) > 0 {
		sink := storage.NewJsonlSink(cfg.ReportOut)
		if err := sink.PutReportBatch(summary.Reports); err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
	}

	if len(summary.Reports) == 0 {
		fmt.Printf("no matching tokens found in block range %d to %d\n", fromBlock, toBlock)
		return nil
	}
	fmt.Printf("detected %d token(s) in block range %d to %d:\n", len(summary.Reports), fromBlock, toBlock)
	for _, report := range summary.Reports {
		fmt.Printf("  %s\n", report.Token)
	}
	return nil
}

func logTradeResult(logger *zap.Logger, token string, result model.TradeResult) {
	fields := []zap.Field{
		zap.String("token", token),
		zap.String("tx_hash", result.TxHash),
		zap.Uint64("gas_used", result.GasUsed),
		zap.Duration("elapsed", result.Elapsed),
	}
	switch {
	case result.Ok:
		logger.Info("swap confirmed", fields...)
	case result.Expired:
		logger.Warn("swap expired", append(fields, zap.String("reason", result.Reason))...)
	default:
		logger.Error("swap failed", append(fields, zap.String("reason", result.Reason))...)
	}
}

func buildFilterConfig(cfg config.Config) (detect.FilterConfig, error) {
	topic, err := detect.ParseTopic(cfg.EventTopic)
	if err != nil {
		return detect.FilterConfig{}, err
	}

	filterCfg := detect.FilterConfig{
		EventSignature: topic,
		// Zero previous owner: only freshly deployed contracts match.
	}

	if cfg.TargetOwner != "" {
		owner, err := detect.ParseAddress(cfg.TargetOwner)
		if err != nil {
			return detect.FilterConfig{}, fmt.Errorf("target owner: %w", err)
		}
		filterCfg.NewOwner = &owner
	}

	contracts, err := detect.ParseAddresses(cfg.Deployers)
	if err != nil {
		return detect.FilterConfig{}, fmt.Errorf("deployer: %w", err)
	}
	filterCfg.Contracts = contracts

	return filterCfg, nil
}

func buildClassifierConfig(cfg config.Config) (detect.ClassifierConfig, error) {
	wanted, err := detect.ParseAddress(cfg.Wanted)
	if err != nil {
		return detect.ClassifierConfig{}, fmt.Errorf("wanted: %w", err)
	}

	classifierCfg := detect.ClassifierConfig{
		Wanted:        wanted,
		VerifyCallers: cfg.Verify,
	}

	if cfg.Unwanted != "" {
		unwanted, err := detect.ParseAddress(cfg.Unwanted)
		if err != nil {
			return detect.ClassifierConfig{}, fmt.Errorf("unwanted: %w", err)
		}
		classifierCfg.Unwanted = unwanted
	}

	return classifierCfg, nil
}

func buildTradeConfig(cfg config.Config) (trade.Config, error) {
	router, err := detect.ParseAddress(cfg.Router)
	if err != nil {
		return trade.Config{}, fmt.Errorf("router: %w", err)
	}
	tokenIn, err := detect.ParseAddress(cfg.TokenIn)
	if err != nil {
		return trade.Config{}, fmt.Errorf("token in: %w", err)
	}

	amountIn, ok := new(big.Int).SetString(cfg.AmountIn, 10)
	if !ok {
		return trade.Config{}, fmt.Errorf("invalid input amount: %s", cfg.AmountIn)
	}
	amountOutMin, ok := new(big.Int).SetString(cfg.AmountOutMin, 10)
	if !ok {
		return trade.Config{}, fmt.Errorf("invalid minimum output amount: %s", cfg.AmountOutMin)
	}

	return trade.Config{
		Router:       router,
		TokenIn:      tokenIn,
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Deadline:     cfg.TradeDeadline,
		Tier:         trade.Tier(cfg.GasTier),
	}, nil
}
