// internal/sumton/sumton_test.go
package sumton

import (
	"math"
	"math/big"
	"testing"
)

func TestSum(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{-5, 0},
		{0, 0},
		{1, 1},
		{2, 3},
		{5, 15},
		{10, 55},
		{100, 5050},
		{1000, 500500},
	}

	impls := map[string]func(int) int{
		"recursive": SumRecursive,
		"iterative": SumIterative,
		"formula":   SumFormula,
	}

	for name, sum := range impls {
		for _, tt := range tests {
			if got := sum(tt.n); got != tt.want {
				t.Errorf("%s(%d) = %d, want %d", name, tt.n, got, tt.want)
			}
		}
	}
}

func TestSumFormula_Large(t *testing.T) {
	// n(n+1) overflows here while the halved product does not
	n := int(math.Sqrt(float64(math.MaxInt64))) + 10

	want := new(big.Int).Mul(big.NewInt(int64(n)), big.NewInt(int64(n)+1))
	want.Div(want, big.NewInt(2))

	if got := SumFormula(n); big.NewInt(int64(got)).Cmp(want) != 0 {
		t.Errorf("SumFormula(%d) = %d, want %s", n, got, want)
	}
}
