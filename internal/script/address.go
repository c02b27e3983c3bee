package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ExtractAddress decodes a standard pk_script into its base58/bech32
// address string, for log and metric enrichment. It returns an error for
// non-standard or unparseable scripts; the VM itself never needs an
// address, only callers reporting on chain activity do.
func ExtractAddress(pkScript []byte, params *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil {
		return "", fmt.Errorf("extracting address: %w", err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses in script")
	}
	return addrs[0].EncodeAddress(), nil
}

// ValidAddress reports whether addrStr parses as a well-formed address on
// params, without caring what script type it decodes to.
func ValidAddress(addrStr string, params *chaincfg.Params) bool {
	_, err := btcutil.DecodeAddress(addrStr, params)
	return err == nil
}

// ChaincfgParams maps a network name (as used by wire.Params.Name) to the
// matching btcsuite chain parameters, for ExtractAddress callers that only
// know the network by name. Only the bitcoin networks have a counterpart;
// every other name, including namecoin and litecoin, maps to
// MainNetParams.
func ChaincfgParams(network string) *chaincfg.Params {
	switch network {
	case "bitcoin":
		return &chaincfg.MainNetParams
	case "bitcoin_testnet", "bitcoin_testnet3":
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.MainNetParams
	}
}
