package service

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/pkg/apperror"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSalt = bytes.Repeat([]byte{0xAB}, 32)

func newTestDeriver(t *testing.T) *AddressService {
	t.Helper()
	svc, err := NewAddressService(testSalt)
	require.NoError(t, err)
	return svc
}

func TestNewAddressService_SaltTooShort(t *testing.T) {
	_, err := NewAddressService([]byte("short"))
	assert.Error(t, err)
}

func TestDerive_Deterministic(t *testing.T) {
	svc := newTestDeriver(t)

	for _, currency := range []domain.CurrencyKind{domain.CurrencyBTC, domain.CurrencyETH} {
		a1, err := svc.Derive(42, currency)
		require.NoError(t, err)
		a2, err := svc.Derive(42, currency)
		require.NoError(t, err)
		assert.Equal(t, a1, a2, "same inputs must yield the same address")
	}
}

func TestDerive_DistinctAcrossUsersAndCurrencies(t *testing.T) {
	svc := newTestDeriver(t)

	btc1, err := svc.Derive(1, domain.CurrencyBTC)
	require.NoError(t, err)
	btc2, err := svc.Derive(2, domain.CurrencyBTC)
	require.NoError(t, err)
	eth1, err := svc.Derive(1, domain.CurrencyETH)
	require.NoError(t, err)

	assert.NotEqual(t, btc1, btc2)
	assert.NotEqual(t, btc1, eth1)
}

func TestDerive_SaltChangesAddress(t *testing.T) {
	svc1 := newTestDeriver(t)
	svc2, err := NewAddressService(bytes.Repeat([]byte{0xCD}, 32))
	require.NoError(t, err)

	a1, err := svc1.Derive(42, domain.CurrencyBTC)
	require.NoError(t, err)
	a2, err := svc2.Derive(42, domain.CurrencyBTC)
	require.NoError(t, err)

	assert.NotEqual(t, a1, a2)
}

func TestDerive_BTC_Base58CheckValid(t *testing.T) {
	svc := newTestDeriver(t)

	addr, err := svc.Derive(42, domain.CurrencyBTC)
	require.NoError(t, err)

	// Decode must round-trip: correct version byte, intact checksum,
	// 20-byte payload.
	payload, version, err := base58.CheckDecode(addr)
	require.NoError(t, err, "address must carry a valid Base58Check checksum")
	assert.Equal(t, byte(0x00), version)
	assert.Len(t, payload, 20)
	assert.Equal(t, byte('1'), addr[0], "mainnet P2PKH addresses start with 1")
}

func TestDerive_ETH_EIP55Checksum(t *testing.T) {
	svc := newTestDeriver(t)

	addr, err := svc.Derive(42, domain.CurrencyETH)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)

	// Re-applying the checksum to the lowercased form must reproduce the
	// exact mixed-case address.
	raw, err := hex.DecodeString(strings.ToLower(addr[2:]))
	require.NoError(t, err)
	assert.Equal(t, addr, checksumHex(raw))
}

func TestChecksumHex_KnownVector(t *testing.T) {
	// EIP-55 reference vector.
	raw, err := hex.DecodeString("52908400098527886e0f7030069857d2e4169ee7")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", checksumHex(raw))
}

func TestDerive_InvalidInputs(t *testing.T) {
	svc := newTestDeriver(t)

	tests := []struct {
		name     string
		userID   int64
		currency domain.CurrencyKind
		wantCode string
	}{
		{"zero user id", 0, domain.CurrencyBTC, "CARD_001"},
		{"negative user id", -5, domain.CurrencyETH, "CARD_001"},
		{"fiat currency", 42, domain.CurrencyUSD, "CARD_004"},
		{"unknown currency", 42, domain.CurrencyKind("doge"), "CARD_004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := svc.Derive(tt.userID, tt.currency)
			require.Error(t, err)
			assert.Empty(t, addr, "a failed derivation must never return an address")

			appErr, ok := err.(*apperror.AppError)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestDerive_NoCollisions(t *testing.T) {
	if testing.Short() {
		t.Skip("collision sweep skipped in short mode")
	}
	svc := newTestDeriver(t)

	const n = 10000
	seen := make(map[string]int64, n*2)
	for userID := int64(1); userID <= n; userID++ {
		for _, currency := range []domain.CurrencyKind{domain.CurrencyBTC, domain.CurrencyETH} {
			addr, err := svc.Derive(userID, currency)
			require.NoError(t, err)
			if prev, dup := seen[addr]; dup {
				t.Fatalf("collision: users %d and %d share address %s", prev, userID, addr)
			}
			seen[addr] = userID
		}
	}
}
