package pass

import (
	"bytes"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func testDomain(t *testing.T) Domain {
	t.Helper()
	domain, err := NewDomain(
		"WhitelistToken",
		"1",
		1,
		ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa"),
		ethcommon.HexToAddress("0x00000000000000000000000000000000000000bb"),
	)
	if err != nil {
		t.Fatalf("new domain: %v", err)
	}
	return domain
}

func TestVoucherDigestDeterministic(t *testing.T) {
	domain := testDomain(t)
	voucher := Voucher{Wallet: ethcommon.HexToAddress("0x00000000000000000000000000000000000000cc")}
	first, err := VoucherDigest(domain, voucher)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	second, err := VoucherDigest(domain, voucher)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("digest not deterministic: %x vs %x", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("unexpected digest length %d", len(first))
	}
}

func TestVoucherDigestDomainSeparation(t *testing.T) {
	base := testDomain(t)
	voucher := Voucher{Wallet: ethcommon.HexToAddress("0x00000000000000000000000000000000000000cc")}
	baseline, err := VoucherDigest(base, voucher)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	variants := map[string]Domain{}

	name := base
	name.Name = "OtherToken"
	variants["name"] = name

	version := base
	version.Version = "2"
	variants["version"] = version

	chain := base
	chain.ChainID = 5
	variants["chainId"] = chain

	contract := base
	contract.VerifyingContract = ethcommon.HexToAddress("0x00000000000000000000000000000000000000dd")
	variants["verifyingContract"] = contract

	for field, domain := range variants {
		digest, err := VoucherDigest(domain, voucher)
		if err != nil {
			t.Fatalf("digest with changed %s: %v", field, err)
		}
		if bytes.Equal(baseline, digest) {
			t.Fatalf("changing %s did not change digest", field)
		}
	}

	otherWallet := Voucher{Wallet: ethcommon.HexToAddress("0x00000000000000000000000000000000000000dd")}
	digest, err := VoucherDigest(base, otherWallet)
	if err != nil {
		t.Fatalf("digest with changed wallet: %v", err)
	}
	if bytes.Equal(baseline, digest) {
		t.Fatal("changing wallet did not change digest")
	}
}

func TestNewDomainValidation(t *testing.T) {
	authority := ethcommon.HexToAddress("0x00000000000000000000000000000000000000bb")
	if _, err := NewDomain("", "1", 1, ethcommon.Address{}, authority); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := NewDomain("WhitelistToken", " ", 1, ethcommon.Address{}, authority); err == nil {
		t.Fatal("expected error for empty version")
	}
	if _, err := NewDomain("WhitelistToken", "1", 0, ethcommon.Address{}, authority); err == nil {
		t.Fatal("expected error for zero chain id")
	}
	if _, err := NewDomain("WhitelistToken", "1", 1, ethcommon.Address{}, ethcommon.Address{}); err == nil {
		t.Fatal("expected error for zero authority")
	}
}
