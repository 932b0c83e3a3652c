package room

import "math/rand/v2"

// RandomDice draws from the shared math/rand/v2 source, which is safe for concurrent use.
type RandomDice struct{}

func (RandomDice) IntN(n int) int {
	return rand.IntN(n)
}

// ScriptedDice replays fixed draws in order and then repeats the last one.
// It exists for deterministic tests and tooling.
type ScriptedDice struct {
	Draws []int
	next  int
}

func (d *ScriptedDice) IntN(n int) int {
	if len(d.Draws) == 0 {
		return 0
	}
	i := d.next
	if i >= len(d.Draws) {
		i = len(d.Draws) - 1
	} else {
		d.next++
	}
	return d.Draws[i] % n
}
