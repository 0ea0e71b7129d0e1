package lineitems

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeIDs(t *testing.T) {
	cases := []struct {
		name               string
		primary, secondary []string
		want               []string
	}{
		{"both empty", nil, nil, []string{}},
		{"disjoint", []string{"a", "b"}, []string{"c"}, []string{"a", "b", "c"}},
		{"overlap", []string{"L1", "L2"}, []string{"L2", "L3"}, []string{"L1", "L2", "L3"}},
		{"duplicates within one list", []string{"a", "a", "b"}, nil, []string{"a", "b"}},
		{"blank ids dropped", []string{" ", "a", ""}, []string{" a "}, []string{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MergeIDs(tc.primary, tc.secondary))
		})
	}
}

func TestMergeIDs_UnionSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	gen := func() []string {
		out := make([]string, rng.Intn(8))
		for i := range out {
			out[i] = fmt.Sprintf("L%d", rng.Intn(10))
		}
		return out
	}
	for i := 0; i < 200; i++ {
		a, b := gen(), gen()
		union := map[string]bool{}
		for _, id := range append(append([]string{}, a...), b...) {
			union[id] = true
		}

		merged := MergeIDs(a, b)

		assert.Len(t, merged, len(union))
		for _, id := range merged {
			assert.True(t, union[id])
		}
	}
}

func TestDistinctProductIDs(t *testing.T) {
	recs := []LineItemRecord{{ProductID: "P1"}, {ProductID: ""}, {ProductID: "P2"}, {ProductID: "P1"}}
	assert.Equal(t, []string{"P1", "P2"}, DistinctProductIDs(recs))
}
