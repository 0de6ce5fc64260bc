package agent

import (
	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/web3/chains"
	"HatterAgent/internal/web3/wallet"
)

const (
	// CodeValidationFailed 表示抽取到的参数不合法，需要用户更正。
	CodeValidationFailed xerrors.Code = "VALIDATION_FAILED"
	// CodeMissingState 表示调用方没有提供会话状态。
	CodeMissingState xerrors.Code = "MISSING_STATE"
	// CodeExtractionFailed 表示参数抽取阶段的大模型调用失败。
	CodeExtractionFailed xerrors.Code = "EXTRACTION_FAILED"
	// CodeContractCallFailed 表示合约调用或交易提交失败。
	CodeContractCallFailed xerrors.Code = "CONTRACT_CALL_FAILED"
)

func init() {
	xerrors.Register(CodeValidationFailed, xerrors.Attributes{
		Message:    "invalid action parameters",
		UserFacing: true,
		Severity:   xerrors.SeverityInfo,
	})
	xerrors.Register(CodeMissingState, xerrors.Attributes{
		Message:  "State is required",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeExtractionFailed, xerrors.Attributes{
		Message:  "parameter extraction failed",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeContractCallFailed, xerrors.Attributes{
		Message:  "contract call failed",
		Severity: xerrors.SeverityCritical,
	})
}

// 便于调用方在 agent 包内判断跨包的领域错误码。
const (
	CodeUnknownChain = chains.CodeUnknownChain
	CodeNoCredential = wallet.CodeNoCredential
)
