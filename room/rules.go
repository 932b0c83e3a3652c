package room

type circleBounds struct {
	min, max int
}

var circleLimits = map[Mode]circleBounds{
	ModeUniform:  {min: 10, max: 200},
	ModeWeighted: {min: 10, max: 100},
}

// ClampCircles bounds a requested track length to the mode's range.
// Missing or non-numeric input yields DefaultCircles.
func ClampCircles(mode Mode, requested Number) int {
	if !requested.Valid {
		return DefaultCircles
	}
	b, ok := circleLimits[mode]
	if !ok {
		b = circleLimits[ModeUniform]
	}
	return min(max(requested.Value, b.min), b.max)
}

func ClampMaxPlayers(requested Number) int {
	if !requested.Valid {
		return MaxPlayersLimit
	}
	return min(max(requested.Value, MinPlayers), MaxPlayersLimit)
}

// NormalizeBpTo10000 absorbs any deviation from TotalBp into the first slot,
// floored at zero.
func NormalizeBpTo10000(p *ProbsBp) {
	sum := 0
	for _, v := range p {
		sum += v
	}
	p[0] = max(0, p[0]+TotalBp-sum)
}

// ApplyGift shifts GiftShiftBp from each of faces 4-6 to each of faces 1-3.
func ApplyGift(r *Room) error {
	if r.Config.Mode != ModeWeighted {
		return CodeNotApplicable
	}
	if r.Weighted.GiftStacks >= MaxGiftStacks {
		return CodeLimitReached
	}

	r.Weighted.GiftStacks++

	p := &r.Weighted.ProbsBp
	for i := 0; i < 3; i++ {
		p[i] += GiftShiftBp
		p[i+3] -= GiftShiftBp
	}
	for i := range p {
		p[i] = max(0, p[i])
	}

	NormalizeBpTo10000(p)
	return nil
}

func RollUniform(d Dice, sides int) int {
	if sides <= 0 {
		sides = DieSides
	}
	return d.IntN(sides) + 1
}

// RollWeighted draws r in [1, TotalBp] and returns the first face whose
// cumulative weight reaches r.
func RollWeighted(d Dice, probs ProbsBp) int {
	r := d.IntN(TotalBp) + 1
	acc := 0
	for i, bp := range probs {
		acc += bp
		if r <= acc {
			return i + 1
		}
	}
	return len(probs)
}

// NextTurn advances the turn pointer and returns the new holder.
func NextTurn(r *Room) (string, bool) {
	if len(r.Order) == 0 {
		return "", false
	}
	r.TurnIndex = (r.TurnIndex + 1) % len(r.Order)
	return r.Order[r.TurnIndex], true
}

func ResetPositions(r *Room) {
	for _, p := range r.Players {
		p.Pos = 0
	}
}
