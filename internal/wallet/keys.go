package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/luna-coin/luna-wallet/pkg/crypto"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// BIP-44 derivation path: m/44'/909'/0'/0/0.
const (
	purposeBIP44 = bip32.FirstHardenedChild + 44
	coinTypeLuna = bip32.FirstHardenedChild + 909
)

// AddressPrefix marks Luna addresses.
const AddressPrefix = "LUN_"

// KeyPair is an in-memory secp256k1 key pair with its derived address.
type KeyPair struct {
	priv    *crypto.PrivateKey
	Address string
}

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks word count, word list and checksum per BIP-39.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// KeyFromMnemonic derives the wallet key at m/44'/909'/0'/0/0 from a
// BIP-39 mnemonic and optional passphrase.
func KeyFromMnemonic(mnemonic, passphrase string) (*KeyPair, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, idx := range []uint32{purposeBIP44, coinTypeLuna, bip32.FirstHardenedChild, 0, 0} {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}

	// bip32 private key bytes carry a leading 0x00 pad.
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	return keyPairFromScalar(raw)
}

// KeyFromHex restores a key pair from a hex-encoded 32-byte scalar.
func KeyFromHex(privHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return keyPairFromScalar(raw)
}

func keyPairFromScalar(raw []byte) (*KeyPair, error) {
	priv, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, err
	}
	addr, err := NewAddress(priv.PublicKey())
	if err != nil {
		return nil, err
	}
	return &KeyPair{priv: priv, Address: addr}, nil
}

// NewAddress derives a fresh address from a compressed public key:
// the prefix, the first 16 hex chars of BLAKE3(pubkey), and a random
// 4-byte suffix that makes each derivation globally unique.
func NewAddress(pubKey []byte) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate address suffix: %w", err)
	}
	body := crypto.HashHex(pubKey)[:16]
	return fmt.Sprintf("%s%s_%s", AddressPrefix, body, hex.EncodeToString(suffix)), nil
}

// PublicKeyHex returns the compressed public key hex-encoded.
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.priv.PublicKey())
}

// PrivateKeyHex returns the private scalar hex-encoded.
func (kp *KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(kp.priv.Serialize())
}

// Sign produces a Schnorr signature over a 32-byte digest.
func (kp *KeyPair) Sign(digest []byte) ([]byte, error) {
	return kp.priv.Sign(digest)
}

// Zero wipes the private key material.
func (kp *KeyPair) Zero() {
	kp.priv.Zero()
}
