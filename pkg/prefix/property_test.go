package prefix

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRegisterProperties checks the register invariants for arbitrary
// prefix names and local parts.
func TestRegisterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("qualify expands short:suffix to long+suffix", prop.ForAll(
		func(shorts []string, pick int, suffix string) bool {
			r := NewRegister()
			seen := make(map[string]bool)
			var loaded []*Prefix
			for i, short := range shorts {
				if seen[short] {
					continue
				}
				seen[short] = true
				p := MustParse(fmt.Sprintf("%s: <http://example.org/ns%d/%s#>", short, i, short))
				r.Load(p)
				loaded = append(loaded, p)
			}
			if len(loaded) == 0 {
				return true
			}
			p := loaded[pick%len(loaded)]
			return r.Qualify(p.Short+":"+suffix) == p.Long+suffix
		},
		gen.SliceOfN(5, gen.Identifier()),
		gen.IntRange(0, 100),
		gen.AlphaString(),
	))

	properties.Property("IsURIMatch is reflexive", prop.ForAll(
		func(uri string, registered bool) bool {
			r := NewRegister()
			if registered {
				r.Load(MustParse("ex: <http://example.org/>"))
			}
			return r.IsURIMatch(uri, uri)
		},
		gen.AnyString(),
		gen.Bool(),
	))

	properties.Property("short and long form of the same URI match", prop.ForAll(
		func(local string) bool {
			r := NewRegister()
			r.Load(MustParse("ex: <http://example.org/>"))
			return r.IsURIMatch("ex:"+local, "http://example.org/"+local)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
