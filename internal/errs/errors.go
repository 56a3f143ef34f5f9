// Package errs defines the typed error taxonomy shared by the ledger core and its host shell.
package errs

import (
	"errors"
	"fmt"
)

// Category groups error codes by how a caller is expected to react.
type Category int32

const (
	CategoryValidation Category = iota
	CategoryArithmetic
	CategoryState
	CategoryAuthorization
	CategoryNotFound
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryArithmetic:
		return "arithmetic"
	case CategoryState:
		return "state"
	case CategoryAuthorization:
		return "authorization"
	case CategoryNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Code identifies a single failure condition.
type Code int32

const (
	CodeUnauthorized Code = iota + 1
	CodeNotFundManager
	CodeAdminRequired
	CodeUnauthorizedCaller

	CodeFundNotInitialized
	CodeLPPositionNotFound
	CodeInsuranceFundNotInitialized

	CodeInvalidAmount
	CodeDepositTooSmall
	CodeFundNameTooLong
	CodeInvalidFeeConfig
	CodeManagementFeeTooHigh
	CodePerformanceFeeTooHigh
	CodeInvalidInsuranceConfig

	CodeOverflow
	CodeUnderflow
	CodeDivisionByZero
	CodeNAVCalculation
	CodeShareCalculation

	CodeInsufficientBalance
	CodeInsufficientShares
	CodeFundClosed
	CodeFundPaused
	CodeFundHasLPPositions
	CodeFeeCollectionTooEarly
	CodeNoFeesToCollect
	CodeADLInProgress
	CodeWithdrawalDelayNotMet
	CodeSnapshotTooRecent
	CodeFundAlreadyInitialized
	CodeInsuranceFundAlreadyInitialized

	CodeStaleTimestamp
	CodeFutureTimestamp
)

type codeInfo struct {
	name     string
	message  string
	category Category
}

var codeTable = map[Code]codeInfo{
	CodeUnauthorized:       {"UNAUTHORIZED", "caller is not authorized", CategoryAuthorization},
	CodeNotFundManager:     {"NOT_FUND_MANAGER", "caller is not the fund manager", CategoryAuthorization},
	CodeAdminRequired:      {"ADMIN_REQUIRED", "admin required for this operation", CategoryAuthorization},
	CodeUnauthorizedCaller: {"UNAUTHORIZED_CALLER", "caller is not the authorized program", CategoryAuthorization},

	CodeFundNotInitialized:          {"FUND_NOT_INITIALIZED", "fund is not initialized", CategoryNotFound},
	CodeLPPositionNotFound:          {"LP_POSITION_NOT_FOUND", "lp position not found", CategoryNotFound},
	CodeInsuranceFundNotInitialized: {"INSURANCE_FUND_NOT_INITIALIZED", "insurance fund is not initialized", CategoryNotFound},

	CodeInvalidAmount:          {"INVALID_AMOUNT", "amount must be greater than zero", CategoryValidation},
	CodeDepositTooSmall:        {"DEPOSIT_TOO_SMALL", "deposit amount is below minimum", CategoryValidation},
	CodeFundNameTooLong:        {"FUND_NAME_TOO_LONG", "fund name is empty or exceeds maximum length", CategoryValidation},
	CodeInvalidFeeConfig:       {"INVALID_FEE_CONFIG", "invalid fee configuration", CategoryValidation},
	CodeManagementFeeTooHigh:   {"MANAGEMENT_FEE_TOO_HIGH", "management fee exceeds maximum (10%)", CategoryValidation},
	CodePerformanceFeeTooHigh:  {"PERFORMANCE_FEE_TOO_HIGH", "performance fee exceeds maximum (50%)", CategoryValidation},
	CodeInvalidInsuranceConfig: {"INVALID_INSURANCE_CONFIG", "invalid insurance fund configuration", CategoryValidation},

	CodeOverflow:         {"OVERFLOW", "arithmetic overflow", CategoryArithmetic},
	CodeUnderflow:        {"UNDERFLOW", "arithmetic underflow", CategoryArithmetic},
	CodeDivisionByZero:   {"DIVISION_BY_ZERO", "division by zero", CategoryArithmetic},
	CodeNAVCalculation:   {"NAV_CALCULATION_ERROR", "nav calculation error", CategoryArithmetic},
	CodeShareCalculation: {"SHARE_CALCULATION_ERROR", "share calculation error", CategoryArithmetic},

	CodeInsufficientBalance:             {"INSUFFICIENT_BALANCE", "insufficient balance", CategoryState},
	CodeInsufficientShares:              {"INSUFFICIENT_SHARES", "insufficient shares for redemption", CategoryState},
	CodeFundClosed:                      {"FUND_CLOSED", "fund is closed for new deposits", CategoryState},
	CodeFundPaused:                      {"FUND_PAUSED", "fund is paused", CategoryState},
	CodeFundHasLPPositions:              {"FUND_HAS_LP_POSITIONS", "cannot close fund while lp positions exist", CategoryState},
	CodeFeeCollectionTooEarly:           {"FEE_COLLECTION_TOO_EARLY", "fee collection interval not reached", CategoryState},
	CodeNoFeesToCollect:                 {"NO_FEES_TO_COLLECT", "no fees available to collect", CategoryState},
	CodeADLInProgress:                   {"ADL_IN_PROGRESS", "adl in progress: redemptions are paused", CategoryState},
	CodeWithdrawalDelayNotMet:           {"WITHDRAWAL_DELAY_NOT_MET", "withdrawal delay period not met", CategoryState},
	CodeSnapshotTooRecent:               {"SNAPSHOT_TOO_RECENT", "hourly snapshot update too recent", CategoryState},
	CodeFundAlreadyInitialized:          {"FUND_ALREADY_INITIALIZED", "fund is already initialized", CategoryState},
	CodeInsuranceFundAlreadyInitialized: {"INSURANCE_FUND_ALREADY_INITIALIZED", "insurance fund is already initialized", CategoryState},

	CodeStaleTimestamp:  {"STALE_TIMESTAMP", "event timestamp is before the ledger clock", CategoryValidation},
	CodeFutureTimestamp: {"FUTURE_TIMESTAMP", "event timestamp is ahead of the wall clock", CategoryValidation},
}

// String returns the stable wire name of the code.
func (c Code) String() string {
	if info, ok := codeTable[c]; ok {
		return info.name
	}
	return fmt.Sprintf("UNKNOWN_%d", int32(c))
}

// Category returns the taxonomy bucket of the code.
func (c Code) Category() Category {
	if info, ok := codeTable[c]; ok {
		return info.category
	}
	return CategoryState
}

// Error is a coded failure. Detail carries context for logs and is not part of identity.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	msg := codeTable[e.Code].message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Detail == "" {
		return msg
	}
	return msg + ": " + e.Detail
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New returns a coded error without detail.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Newf returns a coded error with formatted detail.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err. ok is false for uncoded errors.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// CategoryOf returns the category of err, or false for uncoded errors.
func CategoryOf(err error) (Category, bool) {
	code, ok := CodeOf(err)
	if !ok {
		return 0, false
	}
	return code.Category(), true
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthorized       = New(CodeUnauthorized)
	ErrNotFundManager     = New(CodeNotFundManager)
	ErrAdminRequired      = New(CodeAdminRequired)
	ErrUnauthorizedCaller = New(CodeUnauthorizedCaller)

	ErrFundNotInitialized          = New(CodeFundNotInitialized)
	ErrLPPositionNotFound          = New(CodeLPPositionNotFound)
	ErrInsuranceFundNotInitialized = New(CodeInsuranceFundNotInitialized)

	ErrInvalidAmount          = New(CodeInvalidAmount)
	ErrDepositTooSmall        = New(CodeDepositTooSmall)
	ErrFundNameTooLong        = New(CodeFundNameTooLong)
	ErrInvalidFeeConfig       = New(CodeInvalidFeeConfig)
	ErrManagementFeeTooHigh   = New(CodeManagementFeeTooHigh)
	ErrPerformanceFeeTooHigh  = New(CodePerformanceFeeTooHigh)
	ErrInvalidInsuranceConfig = New(CodeInvalidInsuranceConfig)

	ErrOverflow         = New(CodeOverflow)
	ErrUnderflow        = New(CodeUnderflow)
	ErrDivisionByZero   = New(CodeDivisionByZero)
	ErrNAVCalculation   = New(CodeNAVCalculation)
	ErrShareCalculation = New(CodeShareCalculation)

	ErrInsufficientBalance             = New(CodeInsufficientBalance)
	ErrInsufficientShares              = New(CodeInsufficientShares)
	ErrFundClosed                      = New(CodeFundClosed)
	ErrFundPaused                      = New(CodeFundPaused)
	ErrFundHasLPPositions              = New(CodeFundHasLPPositions)
	ErrFeeCollectionTooEarly           = New(CodeFeeCollectionTooEarly)
	ErrNoFeesToCollect                 = New(CodeNoFeesToCollect)
	ErrADLInProgress                   = New(CodeADLInProgress)
	ErrWithdrawalDelayNotMet           = New(CodeWithdrawalDelayNotMet)
	ErrSnapshotTooRecent               = New(CodeSnapshotTooRecent)
	ErrFundAlreadyInitialized          = New(CodeFundAlreadyInitialized)
	ErrInsuranceFundAlreadyInitialized = New(CodeInsuranceFundAlreadyInitialized)

	ErrStaleTimestamp  = New(CodeStaleTimestamp)
	ErrFutureTimestamp = New(CodeFutureTimestamp)
)
