// Package dhgroup implements Diffie-Hellman key agreement over the fixed
// 2048-bit MODP safe prime group (RFC 3526 Group 14) that both STS handshakes
// (client-server and client-client) run over. The group is a package-level
// constant rather than a negotiated parameter: section 4.2 specifies "a
// fixed 2048-bit safe prime group" for every handshake.
//
// This is grounded on the original client's get_dh2048()/generate_key_dh(),
// which built an OpenSSL DH object from the same well-known group and drew a
// fresh ephemeral keypair per handshake; math/big's ModExp plays the role
// OpenSSL's BN_mod_exp played there.
package dhgroup

import (
	"math/big"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/crypto"
)

// Group holds the fixed prime and generator shared by every handshake.
type Group struct {
	P *big.Int
	G *big.Int
}

var sharedGroup = mustLoadGroup()

func mustLoadGroup() *Group {
	p, ok := new(big.Int).SetString(constants.DHGroup2048Prime, 16)
	if !ok {
		panic("dhgroup: failed to parse fixed 2048-bit prime")
	}
	return &Group{P: p, G: big.NewInt(constants.DHGenerator)}
}

// Default returns the fixed 2048-bit safe-prime group used by every handshake.
func Default() *Group {
	return sharedGroup
}

// KeyPair is one party's ephemeral Diffie-Hellman keypair for a single
// handshake run. Private is zeroized once the shared secret has been derived.
type KeyPair struct {
	Private *big.Int
	Public  *big.Int
}

// privateBits is the exponent size in bits; 256 bits of entropy gives more
// than enough security margin against Pohlig-Hellman-style attacks in a
// 2048-bit safe-prime group and keeps modexp cheap.
const privateBits = 256

// Generate draws a fresh ephemeral keypair: a random exponent a and the
// public value g^a mod p.
func (grp *Group) Generate() (*KeyPair, error) {
	randBytes, err := crypto.SecureRandomBytes(privateBits / 8)
	if err != nil {
		return nil, qerrors.NewCryptoError("dhgroup.Generate", err)
	}
	a := new(big.Int).SetBytes(randBytes)
	a.Mod(a, grp.P)
	if a.Sign() == 0 {
		a.SetInt64(1)
	}
	pub := new(big.Int).Exp(grp.G, a, grp.P)
	return &KeyPair{Private: a, Public: pub}, nil
}

// SharedSecret computes g^(ab) mod p given the peer's public value.
func (kp *KeyPair) SharedSecret(grp *Group, peerPublic *big.Int) ([]byte, error) {
	if peerPublic == nil || peerPublic.Sign() <= 0 || peerPublic.Cmp(grp.P) >= 0 {
		return nil, qerrors.NewCryptoError("dhgroup.SharedSecret", qerrors.ErrInvalidKeySize)
	}
	secret := new(big.Int).Exp(peerPublic, kp.Private, grp.P)
	return fixedWidth(secret, constants.DHPublicMaxBytes), nil
}

// Zeroize overwrites the private exponent so it does not linger in memory
// (the big.Int's backing array is cleared in place).
func (kp *KeyPair) Zeroize() {
	if kp.Private == nil {
		return
	}
	words := kp.Private.Bits()
	for i := range words {
		words[i] = 0
	}
	kp.Private.SetInt64(0)
}

// EncodePublic renders a DH public value as a fixed-width, network-byte-order
// big-endian byte string, the representation signed over in the handshake
// (section 4.2: "network-byte-order length-prefixed DH publics").
func EncodePublic(pub *big.Int) []byte {
	return fixedWidth(pub, constants.DHPublicMaxBytes)
}

// DecodePublic parses a fixed-width big-endian byte string back into a DH
// public value.
func DecodePublic(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func fixedWidth(v *big.Int, width int) []byte {
	b := v.Bytes()
	if len(b) >= width {
		return b
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out
}
