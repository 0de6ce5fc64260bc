package agent

import (
	"encoding/json"
	"strings"
	"testing"

	xerrors "HatterAgent/internal/errors"
)

func TestParseRoleIDHexAndDecimalAgree(t *testing.T) {
	hex, err := ParseRoleID("0x3039")
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	dec, err := ParseRoleID("12345")
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}
	if hex.Value.Cmp(dec.Value) != 0 {
		t.Fatalf("expected equal values, got %s and %s", hex.Value, dec.Value)
	}
	if hex.Text != "0x3039" || dec.Text != "12345" {
		t.Fatalf("original text not preserved: %q %q", hex.Text, dec.Text)
	}
}

func TestParseRoleID(t *testing.T) {
	maxID := "0x" + strings.Repeat("f", 64)
	cases := []struct {
		name string
		raw  any
		want string
		ok   bool
	}{
		{name: "decimal", raw: "42", want: "42", ok: true},
		{name: "upper hex prefix", raw: "0X2a", ok: false},
		{name: "zero padded hex", raw: "0x" + strings.Repeat("0", 63) + "3039", want: "12345", ok: true},
		{name: "json number", raw: json.Number("7"), want: "7", ok: true},
		{name: "integral float", raw: float64(9), want: "9", ok: true},
		{name: "uint256 max", raw: maxID, want: "115792089237316195423570985008687907853269984665640564039457584007913129639935", ok: true},
		{name: "hex above uint256", raw: maxID + "f", ok: false},
		{name: "uint256 overflow", raw: "115792089237316195423570985008687907853269984665640564039457584007913129639936", ok: false},
		{name: "negative", raw: "-1", ok: false},
		{name: "fraction", raw: float64(1.5), ok: false},
		{name: "bare 0x", raw: "0x", ok: false},
		{name: "words", raw: "hat twelve", ok: false},
		{name: "nil", raw: nil, ok: false},
		{name: "bool", raw: true, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseRoleID(tc.raw)
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got %s", id.Value)
				}
				if xerrors.CodeOf(err) != CodeValidationFailed {
					t.Fatalf("unexpected code %s", xerrors.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.Value.String() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, id.Value)
			}
		})
	}
}

func TestValidatorMint(t *testing.T) {
	v := NewValidator(newWallet(t, ""))
	cases := []struct {
		name    string
		raw     map[string]any
		code    xerrors.Code
		message string
	}{
		{name: "valid", raw: map[string]any{"chain": "sepolia", "hatId": "1", "toAddress": testWearer}},
		{name: "missing chain", raw: map[string]any{"hatId": "1", "toAddress": testWearer}, code: CodeValidationFailed, message: "missing required field chain"},
		{name: "unconfigured chain", raw: map[string]any{"chain": "mainnet", "hatId": "1", "toAddress": testWearer}, code: CodeUnknownChain, message: "configured: sepolia,base"},
		{name: "missing address", raw: map[string]any{"chain": "sepolia", "hatId": "1"}, code: CodeValidationFailed, message: "missing required field toAddress"},
		{name: "short address", raw: map[string]any{"chain": "sepolia", "hatId": "1", "toAddress": "0xabc"}, code: CodeValidationFailed, message: "invalid toAddress"},
		{name: "address without prefix", raw: map[string]any{"chain": "sepolia", "hatId": "1", "toAddress": strings.TrimPrefix(testWearer, "0x")}, code: CodeValidationFailed, message: "invalid toAddress"},
		{name: "bad hat id", raw: map[string]any{"chain": "sepolia", "hatId": "abc", "toAddress": testWearer}, code: CodeValidationFailed, message: "invalid hatId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := v.Mint(tc.raw)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if params.Chain != "sepolia" || params.RoleID.Value.Int64() != 1 {
					t.Fatalf("unexpected params: %+v", params)
				}
				return
			}
			if xerrors.CodeOf(err) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if !strings.Contains(xerrors.UserMessage(err), tc.message) {
				t.Fatalf("expected message containing %q, got %q", tc.message, xerrors.UserMessage(err))
			}
		})
	}
}

func TestValidatorRevokeStrictBoolean(t *testing.T) {
	v := NewValidator(newWallet(t, ""))
	base := func(standing any) map[string]any {
		return map[string]any{"chain": "base", "hatId": "0x10", "fromAddress": testWearer, "goodStanding": standing}
	}

	params, err := v.Revoke(base(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.GoodStanding || params.RoleID.Value.Int64() != 16 {
		t.Fatalf("unexpected params: %+v", params)
	}

	for _, standing := range []any{"true", 1, nil} {
		if _, err := v.Revoke(base(standing)); xerrors.CodeOf(err) != CodeValidationFailed {
			t.Fatalf("expected validation failure for %v, got %v", standing, err)
		}
	}
}

func TestValidatorBalance(t *testing.T) {
	v := NewValidator(newWallet(t, ""))
	params, err := v.Balance(map[string]any{"chain": " sepolia ", "hatId": json.Number("12345"), "userAddress": testWearer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Chain != "sepolia" || params.RoleID.Text != "12345" {
		t.Fatalf("unexpected params: %+v", params)
	}
	if _, err := v.Balance(map[string]any{"chain": "sepolia", "hatId": "1", "userAddress": 12}); xerrors.CodeOf(err) != CodeValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
}
