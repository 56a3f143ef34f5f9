package custody

import (
	"fmt"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeFund AccountScope = iota
	AccountScopeInvestor
	AccountScopeManager
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Fund sub-types
	SubTypeVault AccountSubType = iota
	SubTypeShareSupply

	// Investor / manager sub-types
	SubTypeWallet
	SubTypeShares

	// External sub-types
	SubTypeExternalTrading
	SubTypeExternalShortfall
)

// AssetID identifies what a balance is denominated in.
type AssetID uint16

const (
	AssetUnit   AssetID = 1 // unit of account, e6
	AssetShares AssetID = 2 // fund shares; the fund is carried in AccountKey.FundID
)

var assetNames = map[AssetID]string{
	AssetUnit:   "UNIT",
	AssetShares: "SHARES",
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := assetNames[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // fund, investor or manager id
	SubType  AccountSubType
	AssetID  AssetID
	FundID   [16]byte // share accounts only
}

// VaultKey holds a fund's unit-of-account balance. It must equal the fund's total value.
func VaultKey(fundID uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeFund,
		EntityID: fundID,
		SubType:  SubTypeVault,
		AssetID:  AssetUnit,
	}
}

// ShareSupplyKey is the mint/burn counterpart of investor share accounts.
// Its balance is the negated total share supply.
func ShareSupplyKey(fundID uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeFund,
		EntityID: fundID,
		SubType:  SubTypeShareSupply,
		AssetID:  AssetShares,
		FundID:   fundID,
	}
}

// InvestorWalletKey is the investor's unit-of-account counterpart outside the funds.
func InvestorWalletKey(investor uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeInvestor,
		EntityID: investor,
		SubType:  SubTypeWallet,
		AssetID:  AssetUnit,
	}
}

func InvestorSharesKey(investor, fundID uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeInvestor,
		EntityID: investor,
		SubType:  SubTypeShares,
		AssetID:  AssetShares,
		FundID:   fundID,
	}
}

func ManagerWalletKey(manager uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeManager,
		EntityID: manager,
		SubType:  SubTypeWallet,
		AssetID:  AssetUnit,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: AssetUnit,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	id := uuid.UUID(k.EntityID)

	switch k.Scope {
	case AccountScopeFund:
		return fmt.Sprintf("fund:%s:%s", id, k.subTypeName())
	case AccountScopeInvestor:
		if k.SubType == SubTypeShares {
			return fmt.Sprintf("investor:%s:shares:%s", id, uuid.UUID(k.FundID))
		}
		return fmt.Sprintf("investor:%s:%s", id, k.subTypeName())
	case AccountScopeManager:
		return fmt.Sprintf("manager:%s:%s", id, k.subTypeName())
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s", k.subTypeName())
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeVault:
		return "vault"
	case SubTypeShareSupply:
		return "share_supply"
	case SubTypeWallet:
		return "wallet"
	case SubTypeShares:
		return "shares"
	case SubTypeExternalTrading:
		return "trading"
	case SubTypeExternalShortfall:
		return "shortfall"
	default:
		return "unknown"
	}
}
