package errno

import "strings"

// Errno defines the error code logic.
// Code 是全局唯一的字符串错误码，Message 是可以直接展示给用户的文案。
type Errno struct {
	Code    string
	Message string
	Details any
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy of the Errno carrying a more specific message.
func (e Errno) WithMessage(msg string) *Errno {
	return &Errno{Code: e.Code, Message: msg, Details: e.Details}
}

// WithDetails returns a copy of the Errno carrying extra diagnostic payload.
func (e Errno) WithDetails(details any) *Errno {
	return &Errno{Code: e.Code, Message: e.Message, Details: details}
}

// Is supports errors.Is matching by code.
func (e Errno) Is(target error) bool {
	switch typed := target.(type) {
	case *Errno:
		return typed.Code == e.Code
	case Errno:
		return typed.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (string, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return UnknownError.Code, err.Error()
	}
}

// Common
var (
	OK           = Errno{Code: "OK", Message: "Success"}
	UnknownError = Errno{Code: "UNKNOWN_ERROR", Message: "An unknown error occurred. Please try again."}
	ErrBind      = Errno{Code: "INVALID_INPUT", Message: "Error occurred while binding the request body to the struct"}
)

// Network / chain transport
var (
	ErrNetwork          = Errno{Code: "NETWORK_ERROR", Message: "Network connection error. Please check your connection and try again."}
	ErrConnectionFailed = Errno{Code: "CONNECTION_FAILED", Message: "Failed to connect to the blockchain. Please try again later."}
	ErrTimeout          = Errno{Code: "TIMEOUT", Message: "Request timed out. Please try again."}
)

// Wallet / authentication
var (
	ErrWalletNotConnected = Errno{Code: "WALLET_NOT_CONNECTED", Message: "Please connect your wallet to continue."}
	ErrInvalidAccount     = Errno{Code: "INVALID_ACCOUNT", Message: "Invalid wallet account. Please check your connection."}
	ErrSignatureRejected  = Errno{Code: "SIGNATURE_REJECTED", Message: "Transaction signature was rejected."}
)

// Contract level
var (
	ErrContract            = Errno{Code: "CONTRACT_ERROR", Message: "Smart contract interaction failed. Please try again."}
	ErrInsufficientBalance = Errno{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient balance for this transaction."}
	ErrInvalidAmount       = Errno{Code: "INVALID_AMOUNT", Message: "Invalid amount specified."}
	ErrPoolNotFound        = Errno{Code: "POOL_NOT_FOUND", Message: "Staking pool not found."}
	ErrDelegationFailed    = Errno{Code: "DELEGATION_FAILED", Message: "Passport delegation failed."}
)

// Validation / security gate
var (
	ErrInvalidInput       = Errno{Code: "INVALID_INPUT", Message: "Invalid input provided."}
	ErrInvalidAddress     = Errno{Code: "INVALID_ADDRESS", Message: "Invalid address format."}
	ErrRateLimitExceeded  = Errno{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests. Please wait and try again."}
	ErrSuspiciousActivity = Errno{Code: "SUSPICIOUS_ACTIVITY", Message: "Suspicious activity detected."}
)

// API surface
var (
	ErrUnauthorized = Errno{Code: "UNAUTHORIZED", Message: "Unauthorized access. Please log in again."}
	ErrForbidden    = Errno{Code: "FORBIDDEN", Message: "Access forbidden. You don't have permission for this action."}
	ErrNotFound     = Errno{Code: "NOT_FOUND", Message: "Requested resource not found."}
)

// nonRetryable lists the codes that must never be retried automatically.
// 对应的都是需要用户修正输入或者重新授权的场景，重试只会重复失败。
var nonRetryable = map[string]bool{
	ErrWalletNotConnected.Code:  true,
	ErrSignatureRejected.Code:   true,
	ErrInsufficientBalance.Code: true,
	ErrInvalidAmount.Code:       true,
	ErrInvalidInput.Code:        true,
	ErrInvalidAddress.Code:      true,
	ErrUnauthorized.Code:        true,
	ErrForbidden.Code:           true,
	ErrNotFound.Code:            true,
}

// Retryable reports whether a caller-level retry policy may retry the error.
func Retryable(err error) bool {
	code, _ := Decode(err)
	return !nonRetryable[code]
}

// Parse converts an arbitrary error into a structured Errno.
// Chain-level failures arrive as plain errors whose messages contain
// well-known substrings; classify them so that nothing unstructured
// crosses the operation boundary.
func Parse(err error) *Errno {
	if err == nil {
		return nil
	}

	switch typed := err.(type) {
	case *Errno:
		return typed
	case Errno:
		return &typed
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "insufficient"):
		return ErrInsufficientBalance.WithMessage(err.Error())
	case strings.Contains(msg, "rejected"), strings.Contains(msg, "user denied"):
		return ErrSignatureRejected.WithMessage(err.Error())
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ErrTimeout.WithMessage(err.Error())
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		return ErrNetwork.WithMessage(err.Error())
	case strings.Contains(msg, "reverted"), strings.Contains(msg, "contract"):
		return ErrContract.WithMessage(err.Error())
	default:
		// 无法归类的错误按未知处理，保留错误文本
		return UnknownError.WithMessage(err.Error())
	}
}
