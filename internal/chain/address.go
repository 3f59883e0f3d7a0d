package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MinAddressLength is the shortest accepted deposit address.
const MinAddressLength = 26

// NormalizeHash checks the hash format before any network call and returns
// the canonical form stored in the ledger. Both networks take 64 hex digits
// with an optional 0x prefix and are lowercased; BEP20 keeps the prefix,
// TRC20 drops it.
func NormalizeHash(n Network, hash string) (string, bool) {
	hash = strings.TrimSpace(hash)
	if n != BEP20 && n != TRC20 {
		return "", false
	}
	if strings.HasPrefix(hash, "0x") || strings.HasPrefix(hash, "0X") {
		hash = hash[2:]
	}
	if len(hash) != hashHexLength || !isHex(hash) {
		return "", false
	}
	hash = strings.ToLower(hash)
	if n == BEP20 {
		return "0x" + hash, true
	}
	return hash, true
}

// hashHexLength is the number of hex digits in a transaction hash.
const hashHexLength = 64

func isHex(s string) bool {
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(padEven(s))
	return err == nil
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

// topicAddress extracts an address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	b := common.FromHex(topic)
	if len(b) < 20 {
		return ""
	}
	return common.BytesToAddress(b).Hex()
}

// canonicalAddress reduces an address to 40 lowercase hex digits so EVM hex,
// TRON hex (41-prefixed) and TRON base58 forms compare equal.
func canonicalAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	switch {
	case strings.HasPrefix(addr, "T") && len(addr) == 34:
		if raw, ok := decodeBase58Check(addr); ok && len(raw) == 21 && raw[0] == 0x41 {
			return hex.EncodeToString(raw[1:])
		}
		return strings.ToLower(addr)
	case strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X"):
		return strings.ToLower(addr[2:])
	case strings.HasPrefix(addr, "41") && len(addr) == 42:
		return strings.ToLower(addr[2:])
	}
	return strings.ToLower(addr)
}

// sameAddress compares two addresses case-insensitively after normalisation.
func sameAddress(a, b string) bool {
	return canonicalAddress(a) == canonicalAddress(b)
}

// TronAddress renders a 20-byte hex address in TRON base58check form.
func TronAddress(hexAddr string) string {
	raw := common.FromHex(hexAddr)
	if len(raw) > 20 {
		raw = raw[len(raw)-20:]
	}
	if len(raw) != 20 {
		return ""
	}
	return encodeBase58Check(append([]byte{0x41}, raw...))
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func encodeBase58Check(payload []byte) string {
	sum := doubleSHA256(payload)
	data := append(append([]byte{}, payload...), sum[:4]...)

	x := new(big.Int).SetBytes(data)
	base := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for x.Sign() > 0 {
		x.DivMod(x, base, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func decodeBase58Check(s string) ([]byte, bool) {
	x := new(big.Int)
	base := big.NewInt(58)
	for _, r := range s {
		idx := strings.IndexRune(base58Alphabet, r)
		if idx < 0 {
			return nil, false
		}
		x.Mul(x, base)
		x.Add(x, big.NewInt(int64(idx)))
	}
	data := x.Bytes()
	for _, r := range s {
		if r != rune(base58Alphabet[0]) {
			break
		}
		data = append([]byte{0}, data...)
	}
	if len(data) < 5 {
		return nil, false
	}
	payload, check := data[:len(data)-4], data[len(data)-4:]
	sum := doubleSHA256(payload)
	if !bytes.Equal(sum[:4], check) {
		return nil, false
	}
	return payload, true
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
