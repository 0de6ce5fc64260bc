package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/web3/chains"

	"github.com/ethereum/go-ethereum/common"
	gethmath "github.com/ethereum/go-ethereum/common/math"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexPattern     = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
	decimalPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ChainSet 判断链是否在钱包的配置集合中。
type ChainSet interface {
	EnsureConfigured(name string) (chains.Chain, error)
}

// RoleID 是经过校验的 hat id，保留用户书写的原文。
type RoleID struct {
	Text  string
	Value *big.Int
}

// MintParams 是铸造动作的参数。
type MintParams struct {
	Chain     string
	RoleID    RoleID
	ToAddress common.Address
}

// RevokeParams 是撤销动作的参数。
type RevokeParams struct {
	Chain        string
	RoleID       RoleID
	FromAddress  common.Address
	GoodStanding bool
}

// BalanceParams 是余额查询的参数。
type BalanceParams struct {
	Chain       string
	UserAddress common.Address
	RoleID      RoleID
}

// Validator 对大模型抽取出的原始参数进行纯函数式校验。
type Validator struct {
	chains ChainSet
}

// NewValidator 创建校验器。
func NewValidator(set ChainSet) *Validator {
	return &Validator{chains: set}
}

// Mint 校验铸造参数。
func (v *Validator) Mint(raw map[string]any) (MintParams, error) {
	chain, err := v.chain(raw)
	if err != nil {
		return MintParams{}, err
	}
	id, err := ParseRoleID(raw["hatId"])
	if err != nil {
		return MintParams{}, err
	}
	to, err := parseAddress("toAddress", raw["toAddress"])
	if err != nil {
		return MintParams{}, err
	}
	return MintParams{Chain: chain, RoleID: id, ToAddress: to}, nil
}

// Revoke 校验撤销参数。
func (v *Validator) Revoke(raw map[string]any) (RevokeParams, error) {
	chain, err := v.chain(raw)
	if err != nil {
		return RevokeParams{}, err
	}
	id, err := ParseRoleID(raw["hatId"])
	if err != nil {
		return RevokeParams{}, err
	}
	from, err := parseAddress("fromAddress", raw["fromAddress"])
	if err != nil {
		return RevokeParams{}, err
	}
	standing, err := parseStrictBool("goodStanding", raw["goodStanding"])
	if err != nil {
		return RevokeParams{}, err
	}
	return RevokeParams{Chain: chain, RoleID: id, FromAddress: from, GoodStanding: standing}, nil
}

// Balance 校验余额查询参数。
func (v *Validator) Balance(raw map[string]any) (BalanceParams, error) {
	chain, err := v.chain(raw)
	if err != nil {
		return BalanceParams{}, err
	}
	id, err := ParseRoleID(raw["hatId"])
	if err != nil {
		return BalanceParams{}, err
	}
	user, err := parseAddress("userAddress", raw["userAddress"])
	if err != nil {
		return BalanceParams{}, err
	}
	return BalanceParams{Chain: chain, UserAddress: user, RoleID: id}, nil
}

func (v *Validator) chain(raw map[string]any) (string, error) {
	value, ok := raw["chain"].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", missingOrInvalid("chain", raw["chain"], "expected a chain name")
	}
	name := strings.TrimSpace(value)
	if _, err := v.chains.EnsureConfigured(name); err != nil {
		return "", err
	}
	return name, nil
}

// ParseRoleID 解析 hat id：0x 前缀的十六进制或十进制整数，范围为 uint256。
// 同一数值的两种写法得到相同的 Value。
func ParseRoleID(raw any) (RoleID, error) {
	var text string
	switch v := raw.(type) {
	case string:
		text = strings.TrimSpace(v)
	case json.Number:
		text = v.String()
	case float64:
		if v < 0 || v != math.Trunc(v) || v > 1<<53 {
			return RoleID{}, invalidField("hatId", raw, "expected an exact non-negative integer")
		}
		text = strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return RoleID{}, missingOrInvalid("hatId", raw, "expected 0x-prefixed hex or a base-10 integer")
	}

	value := new(big.Int)
	switch {
	case hexPattern.MatchString(text):
		value.SetString(text[2:], 16)
	case decimalPattern.MatchString(text):
		value.SetString(text, 10)
	default:
		return RoleID{}, invalidField("hatId", raw, "expected 0x-prefixed hex or a base-10 integer")
	}
	if value.Cmp(gethmath.MaxBig256) > 0 {
		return RoleID{}, invalidField("hatId", raw, "value exceeds uint256")
	}
	return RoleID{Text: text, Value: value}, nil
}

func parseAddress(field string, raw any) (common.Address, error) {
	value, ok := raw.(string)
	if !ok {
		return common.Address{}, missingOrInvalid(field, raw, "expected a 0x-prefixed 20-byte hex address")
	}
	value = strings.TrimSpace(value)
	if !addressPattern.MatchString(value) {
		return common.Address{}, invalidField(field, raw, "expected a 0x-prefixed 20-byte hex address")
	}
	return common.HexToAddress(value), nil
}

func parseStrictBool(field string, raw any) (bool, error) {
	value, ok := raw.(bool)
	if !ok {
		return false, missingOrInvalid(field, raw, "expected true or false")
	}
	return value, nil
}

func missingOrInvalid(field string, raw any, hint string) error {
	if raw == nil {
		return xerrors.New(CodeValidationFailed, fmt.Sprintf("missing required field %s", field),
			xerrors.WithMetadata("field", field))
	}
	return invalidField(field, raw, hint)
}

func invalidField(field string, raw any, hint string) error {
	return xerrors.New(CodeValidationFailed, fmt.Sprintf("invalid %s %v: %s", field, formatRaw(raw), hint),
		xerrors.WithMetadata("field", field))
}

func formatRaw(raw any) string {
	if s, ok := raw.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", raw)
}
