// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package generate

import "math/rand/v2"

var (
	Genders   = []string{"male", "female"}
	AgeGroups = []string{"10s", "20s", "30s", "40s", "50s"}
)

// Chooser supplies the persona side inputs for a prompt.
type Chooser interface {
	Gender() string
	AgeGroup() string
}

// RandomChooser picks uniformly from Genders and AgeGroups.
type RandomChooser struct{}

func (RandomChooser) Gender() string {
	return Genders[rand.IntN(len(Genders))]
}

func (RandomChooser) AgeGroup() string {
	return AgeGroups[rand.IntN(len(AgeGroups))]
}

// FixedChooser always returns the same persona.
type FixedChooser struct {
	G string
	A string
}

func (c FixedChooser) Gender() string   { return c.G }
func (c FixedChooser) AgeGroup() string { return c.A }
