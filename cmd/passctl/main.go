package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	repoCrypto "eventpass/crypto"
	"eventpass/native/pass"
)

const passphraseEnv = "PASSCTL_PASSPHRASE"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "gen-key":
		err = runGenKey(os.Args[2:])
	case "sign-voucher":
		err = runSignVoucher(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "passctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: passctl <command> [flags]

commands:
  gen-key       generate an authority key and write it to a keystore file
  sign-voucher  sign a mint voucher for a wallet with the authority key

the keystore passphrase is read from `+passphraseEnv)
}

func runGenKey(args []string) error {
	fs := flag.NewFlagSet("gen-key", flag.ExitOnError)
	keystorePath := fs.String("keystore", "./authority.keystore", "destination keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	passphrase := os.Getenv(passphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("%s must be set", passphraseEnv)
	}
	key, err := repoCrypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := repoCrypto.SaveToKeystore(*keystorePath, key, passphrase); err != nil {
		return err
	}
	fmt.Printf("authority %s written to %s\n", key.PubKey().Address().Hex(), *keystorePath)
	return nil
}

func runSignVoucher(args []string) error {
	fs := flag.NewFlagSet("sign-voucher", flag.ExitOnError)
	keystorePath := fs.String("keystore", "./authority.keystore", "authority keystore file")
	wallet := fs.String("wallet", "", "wallet address the voucher admits")
	name := fs.String("name", "WhitelistToken", "typed-data domain name")
	version := fs.String("version", "1", "typed-data domain version")
	chainID := fs.Uint64("chainid", 0, "typed-data chain identifier")
	contract := fs.String("contract", "", "typed-data verifying contract address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	passphrase := os.Getenv(passphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("%s must be set", passphraseEnv)
	}
	key, err := repoCrypto.LoadFromKeystore(*keystorePath, passphrase)
	if err != nil {
		return err
	}
	walletAddr, err := repoCrypto.DecodeAddress(*wallet)
	if err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	contractAddr, err := repoCrypto.DecodeAddress(*contract)
	if err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	domain, err := pass.NewDomain(*name, *version, *chainID, contractAddr, key.PubKey().Address())
	if err != nil {
		return err
	}
	signature, err := pass.SignVoucher(domain, pass.Voucher{Wallet: walletAddr}, key)
	if err != nil {
		return err
	}
	fmt.Printf("0x%s\n", hex.EncodeToString(signature))
	return nil
}
