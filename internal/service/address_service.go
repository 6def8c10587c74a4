package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/pkg/apperror"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// btcVersionByte is the Base58Check version prefix for mainnet P2PKH.
const btcVersionByte = 0x00

// AddressService implements ports.AddressDeriver. Derivation is keyed on a
// process-wide secret salt so addresses cannot be predicted from user ids,
// and is fully deterministic: the same (userID, currency) pair always maps
// to the same network-valid address.
type AddressService struct {
	salt []byte
}

// NewAddressService creates an AddressService with the given secret salt.
func NewAddressService(salt []byte) (*AddressService, error) {
	if len(salt) < 16 {
		return nil, fmt.Errorf("derivation salt must be at least 16 bytes, got %d", len(salt))
	}
	s := make([]byte, len(salt))
	copy(s, salt)
	return &AddressService{salt: s}, nil
}

// Derive maps (userID, currency) to a receive address. Pure: no I/O, no
// shared state. Persisting the result is the caller's responsibility.
func (s *AddressService) Derive(userID int64, currency domain.CurrencyKind) (string, error) {
	if userID <= 0 {
		return "", apperror.ErrInvalidInput(fmt.Sprintf("user id must be positive, got %d", userID))
	}

	switch currency {
	case domain.CurrencyBTC:
		return s.deriveBTC(userID), nil
	case domain.CurrencyETH:
		return s.deriveETH(userID), nil
	default:
		return "", apperror.ErrAddressDerivation(string(currency))
	}
}

// seed produces the 32-byte keyed derivation material for a pair.
func (s *AddressService) seed(currency domain.CurrencyKind, userID int64) []byte {
	mac := hmac.New(sha256.New, s.salt)
	mac.Write([]byte(string(currency)))
	mac.Write([]byte{':'})
	mac.Write([]byte(strconv.FormatInt(userID, 10)))
	return mac.Sum(nil)
}

// deriveBTC produces a mainnet P2PKH address: Base58Check over
// RIPEMD160(SHA256(seed)) with version byte 0x00.
func (s *AddressService) deriveBTC(userID int64) string {
	seed := s.seed(domain.CurrencyBTC, userID)

	sha := sha256.Sum256(seed)
	rip := ripemd160.New()
	rip.Write(sha[:])
	pubKeyHash := rip.Sum(nil)

	return base58.CheckEncode(pubKeyHash, btcVersionByte)
}

// deriveETH produces an EIP-55 checksummed address from the last 20 bytes
// of Keccak-256(seed).
func (s *AddressService) deriveETH(userID int64) string {
	seed := s.seed(domain.CurrencyETH, userID)

	keccak := sha3.NewLegacyKeccak256()
	keccak.Write(seed)
	digest := keccak.Sum(nil)

	return checksumHex(digest[12:])
}

// checksumHex applies the EIP-55 mixed-case checksum to a 20-byte address.
func checksumHex(addr []byte) string {
	lower := hex.EncodeToString(addr)

	keccak := sha3.NewLegacyKeccak256()
	keccak.Write([]byte(lower))
	hash := keccak.Sum(nil)

	out := make([]byte, len(lower))
	for i, c := range []byte(lower) {
		if c >= 'a' && c <= 'f' {
			nibble := hash[i/2]
			if i%2 == 0 {
				nibble >>= 4
			} else {
				nibble &= 0x0f
			}
			if nibble >= 8 {
				c = c - 'a' + 'A'
			}
		}
		out[i] = c
	}
	return "0x" + string(out)
}
