package models

// StatVector holds the six core combat dimensions used by the match
// simulator. Values are absolute (base + allocated points + item bonuses).
type StatVector struct {
	Attack        int `json:"attack"`
	Defense       int `json:"defense"`
	Accuracy      int `json:"accuracy"`
	Evasion       int `json:"evasion"`
	Concentration int `json:"concentration"`
	Stamina       int `json:"stamina"`
}

// StatCount is the number of dimensions in a StatVector.
const StatCount = 6

// Total returns the sum of all six dimensions.
func (s StatVector) Total() int {
	return s.Attack + s.Defense + s.Accuracy + s.Evasion + s.Concentration + s.Stamina
}

// Add returns s with every dimension of other added on top.
func (s StatVector) Add(other StatVector) StatVector {
	return StatVector{
		Attack:        s.Attack + other.Attack,
		Defense:       s.Defense + other.Defense,
		Accuracy:      s.Accuracy + other.Accuracy,
		Evasion:       s.Evasion + other.Evasion,
		Concentration: s.Concentration + other.Concentration,
		Stamina:       s.Stamina + other.Stamina,
	}
}

// AsSlice returns the dimensions in a fixed order, handy for even allocation
// and for the simulator's stat exchanges.
func (s StatVector) AsSlice() [StatCount]int {
	return [StatCount]int{s.Attack, s.Defense, s.Accuracy, s.Evasion, s.Concentration, s.Stamina}
}

// FromSlice builds a StatVector from the same fixed order AsSlice uses.
func FromSlice(vals [StatCount]int) StatVector {
	return StatVector{
		Attack:        vals[0],
		Defense:       vals[1],
		Accuracy:      vals[2],
		Evasion:       vals[3],
		Concentration: vals[4],
		Stamina:       vals[5],
	}
}
