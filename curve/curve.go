// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: curve.go — secp256k1 group/field operations
//
// Purpose:
//   - The single boundary where kmodel's allocation-free Int/Point types meet
//     github.com/btcsuite/btcd/btcec/v2's math/big-based curve.Curve. Every
//     other package only ever calls into this one.
//
// Notes:
//   - Curve arithmetic itself is assumed as a library primitive; this package
//     is glue, not a field-arithmetic implementation.
// ─────────────────────────────────────────────────────────────────────────────

package curve

import (
	"crypto/elliptic"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"kangaroo/kmodel"
)

// ErrInvalidPublicKey is returned by ParsePublicKey for a SEC1 encoding that
// doesn't decode to a point on the curve.
var ErrInvalidPublicKey = errors.New("curve: invalid SEC1 public key encoding")

var secp = btcec.S256()

// Order returns the group order n.
func Order() *big.Int {
	return secp.N
}

// BaseG returns the canonical generator as a kmodel.Point.
func BaseG() kmodel.Point {
	return kmodel.Point{
		X: kmodel.IntFromBig(secp.Gx),
		Y: kmodel.IntFromBig(secp.Gy),
	}
}

// Add returns p1 + p2 on the curve.
func Add(p1, p2 kmodel.Point) kmodel.Point {
	x1, y1 := p1.X.Big(), p1.Y.Big()
	x2, y2 := p2.X.Big(), p2.Y.Big()
	x3, y3 := secp.Add(x1, y1, x2, y2)
	return kmodel.Point{X: kmodel.IntFromBig(x3), Y: kmodel.IntFromBig(y3)}
}

// ScalarMult returns k·P.
func ScalarMult(p kmodel.Point, k *big.Int) kmodel.Point {
	x, y := secp.ScalarMult(p.X.Big(), p.Y.Big(), k.Bytes())
	return kmodel.Point{X: kmodel.IntFromBig(x), Y: kmodel.IntFromBig(y)}
}

// ScalarBaseMult returns k·G.
func ScalarBaseMult(k *big.Int) kmodel.Point {
	x, y := secp.ScalarBaseMult(k.Bytes())
	return kmodel.Point{X: kmodel.IntFromBig(x), Y: kmodel.IntFromBig(y)}
}

// IsOnCurve reports whether p satisfies the curve equation.
func IsOnCurve(p kmodel.Point) bool {
	return secp.IsOnCurve(p.X.Big(), p.Y.Big())
}

// ModN reduces v modulo the group order.
func ModN(v *big.Int) *big.Int {
	return new(big.Int).Mod(v, secp.N)
}

// AddModN returns (a+b) mod n.
func AddModN(a, b *big.Int) *big.Int {
	return ModN(new(big.Int).Add(a, b))
}

// SubModN returns (a-b) mod n, always non-negative.
func SubModN(a, b *big.Int) *big.Int {
	return ModN(new(big.Int).Sub(a, b))
}

// ParsePublicKey decodes a SEC1 compressed (33-byte) or uncompressed
// (65-byte) public key into a kmodel.Point, the target file's encoding of P.
func ParsePublicKey(data []byte) (kmodel.Point, error) {
	var x, y *big.Int
	switch {
	case len(data) == 33:
		// crypto/elliptic's compressed decoding assumes a = -3; secp256k1
		// has a = 0, so decompression goes through btcec's own parser.
		pub, err := btcec.ParsePubKey(data)
		if err != nil {
			return kmodel.Point{}, ErrInvalidPublicKey
		}
		x, y = pub.X(), pub.Y()
	case len(data) == 65:
		x, y = elliptic.Unmarshal(secp, data)
	default:
		return kmodel.Point{}, ErrInvalidPublicKey
	}
	if x == nil {
		return kmodel.Point{}, ErrInvalidPublicKey
	}
	return kmodel.Point{X: kmodel.IntFromBig(x), Y: kmodel.IntFromBig(y)}, nil
}

// Equal reports whether two points have the same affine coordinates.
func Equal(a, b kmodel.Point) bool {
	return a.X == b.X && a.Y == b.Y
}
