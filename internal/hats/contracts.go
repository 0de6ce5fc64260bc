// Package hats talks to the Hats Protocol roles contract on the chains
// configured in the wallet. Hats are non-transferable role tokens keyed by a
// uint256 hat id; a wearer holds at most one of each.
package hats

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/web3/wallet"
	"HatterAgent/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// DefaultAddress is the Hats Protocol v1 deployment, identical on every
// supported chain.
const DefaultAddress = "0x3bc1A0Ad72417f2d411118085256fC53CBdDd137"

// Option customises Contracts.
type Option func(*Contracts)

// WithGasLimit fixes the gas limit of submitted transactions instead of
// estimating it.
func WithGasLimit(limit uint64) Option {
	return func(c *Contracts) {
		c.gasLimit = limit
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Contracts) {
		if l != nil {
			c.logger = l
		}
	}
}

// Contracts executes roles contract calls through the wallet's chain
// clients.
type Contracts struct {
	address  common.Address
	wallet   *wallet.Provider
	gasLimit uint64
	logger   *slog.Logger
}

// NewContracts binds the roles contract deployed at address.
func NewContracts(address string, w *wallet.Provider, opts ...Option) (*Contracts, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		address = DefaultAddress
	}
	if !common.IsHexAddress(address) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid roles contract address %q", address))
	}
	if w == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "wallet provider is required")
	}
	c := &Contracts{
		address: common.HexToAddress(address),
		wallet:  w,
		logger:  logger.Named("hats"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Address returns the bound contract address.
func (c *Contracts) Address() common.Address {
	return c.address
}

// MintHat submits mintHat(hatID, wearer) on chain and returns the
// transaction hash without waiting for inclusion.
func (c *Contracts) MintHat(ctx context.Context, chain string, hatID *big.Int, wearer common.Address) (common.Hash, error) {
	if err := checkUint256(hatID); err != nil {
		return common.Hash{}, err
	}
	client, err := c.wallet.WriteClient(ctx, chain)
	if err != nil {
		return common.Hash{}, err
	}
	transactor, err := NewRolesTransactor(c.address, client.Backend())
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := transactor.MintHat(c.transactOpts(ctx, client), hatID, wearer)
	if err != nil {
		return common.Hash{}, err
	}
	c.audit(ctx, "mintHat", chain, client.From(), tx.Hash(),
		slog.String("hat_id", hatID.String()), slog.String("wearer", wearer.Hex()))
	return tx.Hash(), nil
}

// SetHatWearerStatus submits setHatWearerStatus(hatID, wearer, eligible,
// standing) on chain.
func (c *Contracts) SetHatWearerStatus(ctx context.Context, chain string, hatID *big.Int, wearer common.Address, eligible, standing bool) (common.Hash, error) {
	if err := checkUint256(hatID); err != nil {
		return common.Hash{}, err
	}
	client, err := c.wallet.WriteClient(ctx, chain)
	if err != nil {
		return common.Hash{}, err
	}
	transactor, err := NewRolesTransactor(c.address, client.Backend())
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := transactor.SetHatWearerStatus(c.transactOpts(ctx, client), hatID, wearer, eligible, standing)
	if err != nil {
		return common.Hash{}, err
	}
	c.audit(ctx, "setHatWearerStatus", chain, client.From(), tx.Hash(),
		slog.String("hat_id", hatID.String()), slog.String("wearer", wearer.Hex()),
		slog.Bool("eligible", eligible), slog.Bool("standing", standing))
	return tx.Hash(), nil
}

// BalanceOf reads balanceOf(wearer, hatID) on chain.
func (c *Contracts) BalanceOf(ctx context.Context, chain string, wearer common.Address, hatID *big.Int) (*big.Int, error) {
	if err := checkUint256(hatID); err != nil {
		return nil, err
	}
	client, err := c.wallet.ReadClient(ctx, chain)
	if err != nil {
		return nil, err
	}
	caller, err := NewRolesCaller(c.address, client.Backend())
	if err != nil {
		return nil, err
	}
	return caller.BalanceOf(&bind.CallOpts{Context: ctx}, wearer, hatID)
}

func (c *Contracts) transactOpts(ctx context.Context, client *wallet.WriteClient) *bind.TransactOpts {
	opts := client.TransactOpts(ctx)
	if c.gasLimit > 0 {
		opts.GasLimit = c.gasLimit
	}
	return opts
}

func (c *Contracts) audit(ctx context.Context, method, chain string, from common.Address, hash common.Hash, attrs ...slog.Attr) {
	args := []any{
		slog.String("method", method),
		slog.String("chain", chain),
		slog.String("contract", c.address.Hex()),
		slog.String("from", from.Hex()),
		slog.String("hash", hash.Hex()),
	}
	for _, attr := range attrs {
		args = append(args, attr)
	}
	logger.Audit().InfoContext(ctx, "transaction submitted", args...)
	c.logger.DebugContext(ctx, "transaction submitted", "method", method, "chain", chain, "hash", hash.Hex())
}

// checkUint256 rejects values that cannot be encoded as uint256.
func checkUint256(v *big.Int) error {
	if v == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "hat id is required")
	}
	if v.Sign() < 0 || v.Cmp(math.MaxBig256) > 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("hat id %s out of uint256 range", v.String()))
	}
	return nil
}
