package lifecycle

import (
	"fmt"
	"math/rand/v2"
)

// CodeGen returns a new signal code.
type CodeGen func() string

// RandomCodes returns a generator of "CR" plus four digits (CR1000..CR9999)
// drawn from r. A nil r uses the global source.
func RandomCodes(r *rand.Rand) CodeGen {
	return func() string {
		var n int
		if r == nil {
			n = rand.IntN(9000)
		} else {
			n = r.IntN(9000)
		}
		return fmt.Sprintf("CR%d", 1000+n)
	}
}
