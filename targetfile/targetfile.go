// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: targetfile.go — server target file parsing
//
// Purpose:
//   - Parses the positional target file argument: the interval bit width N
//     (the scalar is known to lie in [0, 2^N)) and the target public key P,
//     one `key = value` pair per line.
// ─────────────────────────────────────────────────────────────────────────────

package targetfile

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"kangaroo/curve"
	"kangaroo/kmodel"
)

// ErrMissingField is returned when the target file is missing its `n` or
// `pubkey` line.
var ErrMissingField = errors.New("targetfile: missing required field (n, pubkey)")

// Target is the parsed contents of a target file.
type Target struct {
	N     uint // interval bit width: the scalar lies in [0, 2^N)
	Point kmodel.Point
}

// Load reads and parses the target file at path. Expected format, one
// `key = value` pair per line (blank lines and `#`-prefixed comments
// ignored):
//
//	n = 135
//	pubkey = 03a34b99f22c790c4e36b2b3c2c35a36db06226e41c692fc82b8b56ac1c540c5bd
func Load(path string) (Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return Target{}, err
	}
	defer f.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	if err := scanner.Err(); err != nil {
		return Target{}, err
	}

	nStr, ok := fields["n"]
	if !ok {
		return Target{}, ErrMissingField
	}
	n, err := strconv.ParseUint(nStr, 10, 16)
	if err != nil {
		return Target{}, fmt.Errorf("targetfile: parsing n: %w", err)
	}

	pubHex, ok := fields["pubkey"]
	if !ok {
		return Target{}, ErrMissingField
	}
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return Target{}, fmt.Errorf("targetfile: decoding pubkey: %w", err)
	}
	point, err := curve.ParsePublicKey(pubBytes)
	if err != nil {
		return Target{}, err
	}

	return Target{N: uint(n), Point: point}, nil
}
