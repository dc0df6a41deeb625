package branch

func classify(x int) int {
	if x > 5 {
		return 1
	}
	return 0
}

func negate(x int) int {
	if -x > 0 {
		return -1
	}
	return 1
}

func mix(a, b uint8) uint8 {
	if a&b == 0 {
		return a + b
	}
	return a - b
}

func halve(f float64) float64 {
	if f/2 < 1.5 {
		return f
	}
	return f / 2
}
