package pass

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// MinterPrimaryType names the typed-data struct signed by the mint authority.
const MinterPrimaryType = "Minter"

// ErrInvalidDomain indicates the domain descriptor is incomplete.
var ErrInvalidDomain = errors.New("pass: invalid domain descriptor")

// Domain binds voucher signatures to a single deployment. All fields are set
// once at construction and never mutated; rotating the authority means
// deploying a fresh engine with a new descriptor.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract ethcommon.Address
	Authority         ethcommon.Address
}

// NewDomain validates and returns an immutable domain descriptor.
func NewDomain(name, version string, chainID uint64, contract, authority ethcommon.Address) (Domain, error) {
	trimmedName := strings.TrimSpace(name)
	trimmedVersion := strings.TrimSpace(version)
	if trimmedName == "" || trimmedVersion == "" {
		return Domain{}, fmt.Errorf("%w: name and version required", ErrInvalidDomain)
	}
	if chainID == 0 {
		return Domain{}, fmt.Errorf("%w: chainId required", ErrInvalidDomain)
	}
	if authority == (ethcommon.Address{}) {
		return Domain{}, fmt.Errorf("%w: authority required", ErrInvalidDomain)
	}
	return Domain{
		Name:              trimmedName,
		Version:           trimmedVersion,
		ChainID:           chainID,
		VerifyingContract: contract,
		Authority:         authority,
	}, nil
}

// Voucher is the typed payload issued off-chain by the mint authority. The
// wallet field is the only signed field; everything else a redemption needs
// (tier, payment) travels outside the signature and is enforced by the engine.
type Voucher struct {
	Wallet ethcommon.Address
}

func (d Domain) typedData(v Voucher) apitypes.TypedData {
	chainID := new(big.Int).SetUint64(d.ChainID)
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			MinterPrimaryType: []apitypes.Type{
				{Name: "wallet", Type: "address"},
			},
		},
		PrimaryType: MinterPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"wallet": v.Wallet.Hex(),
		},
	}
}

// VoucherDigest computes the EIP-712 digest signed by the authority:
// keccak256(0x19 0x01 || domainSeparator || structHash). The encoding is fixed
// so any conforming typed-data implementation reproduces it byte for byte.
func VoucherDigest(d Domain, v Voucher) ([]byte, error) {
	typedData := d.typedData(v)
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("pass: hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(MinterPrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("pass: hash voucher: %w", err)
	}
	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, structHash...)...)
	return ethcrypto.Keccak256(rawData), nil
}
