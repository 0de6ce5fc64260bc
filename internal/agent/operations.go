package agent

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet 是流水线使用的钱包能力子集。
type Wallet interface {
	WalletInfo
	ChainSet
	HasCredential() bool
	SwitchChain(name string) error
}

// RoleContract 是角色合约在指定链上的三个方法。
type RoleContract interface {
	MintHat(ctx context.Context, chain string, hatID *big.Int, wearer common.Address) (common.Hash, error)
	SetHatWearerStatus(ctx context.Context, chain string, hatID *big.Int, wearer common.Address, eligible, standing bool) (common.Hash, error)
	BalanceOf(ctx context.Context, chain string, wearer common.Address, hatID *big.Int) (*big.Int, error)
}

// MintResult 是铸造结果。
type MintResult struct {
	TxHash common.Hash
	Wearer common.Address
	RoleID RoleID
}

// RevokeResult 是撤销结果。
type RevokeResult struct {
	TxHash   common.Hash
	Wearer   common.Address
	RoleID   RoleID
	Standing bool
}

// BalanceResult 是余额查询结果，Balance 为非负整数。
type BalanceResult struct {
	Balance *big.Int
	RoleID  RoleID
}

type mintOperation struct {
	validator *Validator
	wallet    Wallet
	contract  RoleContract
}

func (o *mintOperation) Parse(raw map[string]any) (MintParams, error) {
	return o.validator.Mint(raw)
}

func (o *mintOperation) Invoke(ctx context.Context, p MintParams) (MintResult, error) {
	if err := o.wallet.SwitchChain(p.Chain); err != nil {
		return MintResult{}, err
	}
	hash, err := o.contract.MintHat(ctx, p.Chain, p.RoleID.Value, p.ToAddress)
	if err != nil {
		return MintResult{}, err
	}
	return MintResult{TxHash: hash, Wearer: p.ToAddress, RoleID: p.RoleID}, nil
}

func (o *mintOperation) Reply(p MintParams, r MintResult) Reply {
	return Reply{
		Text: fmt.Sprintf("Successfully minted Hat ID %s to %s\nTransaction Hash: %s",
			r.RoleID.Text, r.Wearer.Hex(), r.TxHash.Hex()),
		Content: map[string]any{
			"success": true,
			"hash":    r.TxHash.Hex(),
			"hatId":   r.RoleID.Text,
			"wearer":  r.Wearer.Hex(),
			"chain":   p.Chain,
		},
	}
}

type revokeOperation struct {
	validator *Validator
	wallet    Wallet
	contract  RoleContract
}

func (o *revokeOperation) Parse(raw map[string]any) (RevokeParams, error) {
	return o.validator.Revoke(raw)
}

func (o *revokeOperation) Invoke(ctx context.Context, p RevokeParams) (RevokeResult, error) {
	if err := o.wallet.SwitchChain(p.Chain); err != nil {
		return RevokeResult{}, err
	}
	// 撤销即把佩戴者标记为不合格，同时记录其信誉状态。
	hash, err := o.contract.SetHatWearerStatus(ctx, p.Chain, p.RoleID.Value, p.FromAddress, false, p.GoodStanding)
	if err != nil {
		return RevokeResult{}, err
	}
	return RevokeResult{TxHash: hash, Wearer: p.FromAddress, RoleID: p.RoleID, Standing: p.GoodStanding}, nil
}

func (o *revokeOperation) Reply(p RevokeParams, r RevokeResult) Reply {
	return Reply{
		Text: fmt.Sprintf("Successfully revoked Hat ID %s from %s\nTransaction Hash: %s",
			r.RoleID.Text, r.Wearer.Hex(), r.TxHash.Hex()),
		Content: map[string]any{
			"success":  true,
			"hash":     r.TxHash.Hex(),
			"hatId":    r.RoleID.Text,
			"wearer":   r.Wearer.Hex(),
			"chain":    p.Chain,
			"standing": r.Standing,
		},
	}
}

type balanceOperation struct {
	validator *Validator
	contract  RoleContract
}

func (o *balanceOperation) Parse(raw map[string]any) (BalanceParams, error) {
	return o.validator.Balance(raw)
}

// Invoke 只读查询，不切换钱包的当前链。
func (o *balanceOperation) Invoke(ctx context.Context, p BalanceParams) (BalanceResult, error) {
	balance, err := o.contract.BalanceOf(ctx, p.Chain, p.UserAddress, p.RoleID.Value)
	if err != nil {
		return BalanceResult{}, err
	}
	if balance == nil {
		balance = new(big.Int)
	}
	return BalanceResult{Balance: balance, RoleID: p.RoleID}, nil
}

func (o *balanceOperation) Reply(p BalanceParams, r BalanceResult) Reply {
	return Reply{
		Text: fmt.Sprintf("Balance of Hat ID %s for Address %s is %s",
			r.RoleID.Text, p.UserAddress.Hex(), r.Balance.String()),
		Content: map[string]any{
			"success": true,
			"hatId":   r.RoleID.Text,
			"wearer":  p.UserAddress.Hex(),
			"balance": r.Balance.String(),
			"chain":   p.Chain,
		},
	}
}
