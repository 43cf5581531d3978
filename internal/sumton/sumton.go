// internal/sumton/sumton.go

// Package sumton sums the integers 1..n three ways.
//
// All three return 0 for n <= 0.
package sumton

// SumRecursive adds n to the sum of 1..n-1.
func SumRecursive(n int) int {
	if n <= 0 {
		return 0
	}
	return n + SumRecursive(n-1)
}

// SumIterative adds 1..n in a loop.
func SumIterative(n int) int {
	sum := 0
	for i := 1; i <= n; i++ {
		sum += i
	}
	return sum
}

// SumFormula uses n(n+1)/2, halving whichever factor is even first so the
// product overflows no earlier than the result does.
func SumFormula(n int) int {
	if n <= 0 {
		return 0
	}
	if n%2 == 0 {
		return (n / 2) * (n + 1)
	}
	return n * ((n + 1) / 2)
}
