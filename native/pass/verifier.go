package pass

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	repoCrypto "eventpass/crypto"
)

// ErrInvalidSignature indicates the signature is malformed, malleable, or was
// not produced by the expected authority.
var ErrInvalidSignature = errors.New("pass: invalid signature")

// secp256k1HalfN is the upper bound for the canonical low-S representation.
var secp256k1HalfN = new(big.Int).Rsh(ethcrypto.S256().Params().N, 1)

// RecoverSigner recovers the address that signed the voucher digest under the
// supplied domain. Signatures must be 65 bytes [R || S || V]; V may be 0/1 or
// the legacy 27/28. High-S encodings are rejected so a logical signature
// verifies under exactly one byte encoding.
func RecoverSigner(domain Domain, voucher Voucher, sig []byte) (ethcommon.Address, error) {
	if len(sig) != ethcrypto.SignatureLength {
		return ethcommon.Address{}, ErrInvalidSignature
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return ethcommon.Address{}, ErrInvalidSignature
	}
	s := new(big.Int).SetBytes(normalized[32:64])
	if s.Sign() == 0 || s.Cmp(secp256k1HalfN) > 0 {
		return ethcommon.Address{}, ErrInvalidSignature
	}
	r := new(big.Int).SetBytes(normalized[:32])
	if r.Sign() == 0 {
		return ethcommon.Address{}, ErrInvalidSignature
	}
	digest, err := VoucherDigest(domain, voucher)
	if err != nil {
		return ethcommon.Address{}, err
	}
	pubKey, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return ethcommon.Address{}, ErrInvalidSignature
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// VerifyVoucher checks the signature against the domain's authority identity.
func VerifyVoucher(domain Domain, voucher Voucher, sig []byte) error {
	recovered, err := RecoverSigner(domain, voucher, sig)
	if err != nil {
		return err
	}
	if recovered != domain.Authority {
		return ErrInvalidSignature
	}
	return nil
}

// SignVoucher produces the 65-byte authority signature over the voucher
// digest. It is the issuance counterpart to VerifyVoucher, used by operator
// tooling and tests.
func SignVoucher(domain Domain, voucher Voucher, key *repoCrypto.PrivateKey) ([]byte, error) {
	digest, err := VoucherDigest(domain, voucher)
	if err != nil {
		return nil, err
	}
	return key.Sign(digest)
}
