package gacha

// Draw under p, return if it is hit
// p <=0 => no hit. p>= 1 => must hit. otherwise, rng.Float64() < p
func Draw(p float64, rng RandomSource) (bool, error) {
	if err := validateProb(p); err != nil {
		return false, err
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	return bernoulli(p, rng), nil
}

// bernoulli is Draw for an already valid p; rng is consulted only when 0<p<1.
func bernoulli(p float64, rng RandomSource) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}
