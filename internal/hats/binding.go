package hats

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RolesMetaData contains the subset of the Hats Protocol ABI used by the
// agent.
var RolesMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"mintHat","stateMutability":"nonpayable",
	 "inputs":[{"name":"_hatId","type":"uint256"},{"name":"_wearer","type":"address"}],
	 "outputs":[{"name":"success","type":"bool"}]},
	{"type":"function","name":"setHatWearerStatus","stateMutability":"nonpayable",
	 "inputs":[{"name":"_hatId","type":"uint256"},{"name":"_wearer","type":"address"},{"name":"_eligible","type":"bool"},{"name":"_standing","type":"bool"}],
	 "outputs":[{"name":"updated","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"_wearer","type":"address"},{"name":"_hatId","type":"uint256"}],
	 "outputs":[{"name":"balance","type":"uint256"}]}
]`,
}

// RolesCaller is a read-only binding to the roles contract.
type RolesCaller struct {
	contract *bind.BoundContract
}

// RolesTransactor is a write-only binding to the roles contract.
type RolesTransactor struct {
	contract *bind.BoundContract
}

// NewRolesCaller binds a read-only instance to a deployed contract.
func NewRolesCaller(address common.Address, caller bind.ContractCaller) (*RolesCaller, error) {
	contract, err := bindRoles(address, caller, nil)
	if err != nil {
		return nil, err
	}
	return &RolesCaller{contract: contract}, nil
}

// NewRolesTransactor binds a write-only instance to a deployed contract.
func NewRolesTransactor(address common.Address, transactor bind.ContractTransactor) (*RolesTransactor, error) {
	contract, err := bindRoles(address, nil, transactor)
	if err != nil {
		return nil, err
	}
	return &RolesTransactor{contract: contract}, nil
}

func bindRoles(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor) (*bind.BoundContract, error) {
	parsed, err := RolesMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, errors.New("GetABI returned nil")
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, nil), nil
}

// BalanceOf binds the contract method balanceOf.
//
// Solidity: function balanceOf(address _wearer, uint256 _hatId) view returns(uint256 balance)
func (c *RolesCaller) BalanceOf(opts *bind.CallOpts, wearer common.Address, hatID *big.Int) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "balanceOf", wearer, hatID); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// MintHat binds the contract method mintHat.
//
// Solidity: function mintHat(uint256 _hatId, address _wearer) returns(bool success)
func (t *RolesTransactor) MintHat(opts *bind.TransactOpts, hatID *big.Int, wearer common.Address) (*types.Transaction, error) {
	return t.contract.Transact(opts, "mintHat", hatID, wearer)
}

// SetHatWearerStatus binds the contract method setHatWearerStatus.
//
// Solidity: function setHatWearerStatus(uint256 _hatId, address _wearer, bool _eligible, bool _standing) returns(bool updated)
func (t *RolesTransactor) SetHatWearerStatus(opts *bind.TransactOpts, hatID *big.Int, wearer common.Address, eligible, standing bool) (*types.Transaction, error) {
	return t.contract.Transact(opts, "setHatWearerStatus", hatID, wearer, eligible, standing)
}
