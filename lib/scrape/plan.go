package scrape

import (
	"math/rand"
)

// Plan is the order the run will process its targets in.
type Plan struct {
	Targets []Target
}

func (p Plan) Names() []string {
	names := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		names[i] = t.Name()
	}
	return names
}

// BuildPlan fixes the processing order before the first request goes
// out. With randomize set the order is a seeded permutation, so the
// same seed replays the same run.
func BuildPlan(targets []Target, randomize bool, rng *rand.Rand) (Plan, error) {
	if len(targets) == 0 {
		return Plan{}, Configf("no targets selected")
	}
	seen := map[string]bool{}
	for _, t := range targets {
		if seen[t.Name()] {
			return Plan{}, Configf("target %q selected twice", t.Name())
		}
		seen[t.Name()] = true
	}

	ordered := make([]Target, len(targets))
	copy(ordered, targets)
	if randomize {
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}
	return Plan{Targets: ordered}, nil
}
