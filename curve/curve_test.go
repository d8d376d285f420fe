package curve

import (
	"crypto/elliptic"
	"math/big"
	"testing"
)

func TestBaseGOnCurve(t *testing.T) {
	g := BaseG()
	if !IsOnCurve(g) {
		t.Fatalf("generator must satisfy the curve equation")
	}
}

func TestScalarMultMatchesBaseMult(t *testing.T) {
	k := big.NewInt(12345)
	g := BaseG()
	viaMult := ScalarMult(g, k)
	viaBase := ScalarBaseMult(k)
	if !Equal(viaMult, viaBase) {
		t.Fatalf("k*G via ScalarMult must equal ScalarBaseMult(k)")
	}
}

func TestAddMatchesDoubleScalarMult(t *testing.T) {
	g := BaseG()
	two := ScalarBaseMult(big.NewInt(2))
	sum := Add(g, g)
	if !Equal(two, sum) {
		t.Fatalf("G+G must equal 2*G")
	}
}

func TestModArithmetic(t *testing.T) {
	n := Order()
	a := new(big.Int).Sub(n, big.NewInt(1))
	b := big.NewInt(2)
	sum := AddModN(a, b)
	if sum.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected (n-1 + 2) mod n == 1, got %s", sum)
	}
	diff := SubModN(big.NewInt(1), big.NewInt(2))
	if diff.Cmp(a) != 0 {
		t.Fatalf("expected (1 - 2) mod n == n-1, got %s", diff)
	}
}

func TestParsePublicKeyRoundTripsCompressedAndUncompressed(t *testing.T) {
	p := ScalarBaseMult(big.NewInt(54321))

	compressed := elliptic.MarshalCompressed(secp, p.X.Big(), p.Y.Big())
	got, err := ParsePublicKey(compressed)
	if err != nil {
		t.Fatalf("ParsePublicKey(compressed): %v", err)
	}
	if !Equal(got, p) {
		t.Fatalf("compressed round trip mismatch")
	}

	uncompressed := elliptic.Marshal(secp, p.X.Big(), p.Y.Big())
	got, err = ParsePublicKey(uncompressed)
	if err != nil {
		t.Fatalf("ParsePublicKey(uncompressed): %v", err)
	}
	if !Equal(got, p) {
		t.Fatalf("uncompressed round trip mismatch")
	}
}

func TestParsePublicKeyRejectsBadLength(t *testing.T) {
	if _, err := ParsePublicKey([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a malformed-length encoding")
	}
}
