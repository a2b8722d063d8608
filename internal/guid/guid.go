// Package guid derives stable Aeon Timeline identifiers from text seeds.
//
// Aeon Timeline assigns random GUIDs to template elements, entities, and
// events. When the sync engine has to invent one, it must be reproducible:
// re-running a sync on unchanged input has to generate the identical
// identifier, or the output archive would differ on every run. Generate is
// therefore a pure function of its seed text.
package guid

import (
	"crypto/sha1"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// digits is the character set Aeon Timeline uses for GUID groups.
const digits = "ABCDEF0123456789"

var (
	groupSizes = [5]int{8, 4, 4, 4, 12}
	groupSalts = [5]string{"a", "b", "c", "d", "e"}

	digitBase = big.NewInt(int64(len(digits)))
)

// Generate returns a GUID in the 8-4-4-4-12 hex-group format derived from
// seed. The same seed always yields the same GUID. No collision detection
// is performed; callers pick distinguishing seeds (for example a role name
// combined with a running number).
func Generate(seed string) string {
	groups := make([]string, len(groupSizes))
	for i, size := range groupSizes {
		key := pbkdf2.Key([]byte(seed), []byte(groupSalts[i]), 1, sha1.Size, sha1.New)
		groups[i] = subGroup(key, size)
	}
	return strings.Join(groups, "-")
}

// subGroup maps a derived key to at most size characters by consuming
// base-16 digits of the key integer, least significant first. A key that
// runs out of value leaves the group short; callers must not assume
// fixed-width zero padding.
func subGroup(key []byte, size int) string {
	n := new(big.Int).SetBytes(key)
	mod := new(big.Int)
	var b strings.Builder
	for b.Len() < size && n.Sign() > 0 {
		n.DivMod(n, digitBase, mod)
		b.WriteByte(digits[mod.Int64()])
	}
	return b.String()
}
