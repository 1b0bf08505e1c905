package models

// ItemGrade orders equipment quality from lowest to highest.
type ItemGrade int

const (
	GradeCommon ItemGrade = iota + 1
	GradeUncommon
	GradeRare
	GradeEpic
	GradeLegendary
)

func (g ItemGrade) String() string {
	switch g {
	case GradeCommon:
		return "common"
	case GradeUncommon:
		return "uncommon"
	case GradeRare:
		return "rare"
	case GradeEpic:
		return "epic"
	case GradeLegendary:
		return "legendary"
	}
	return "unknown"
}

// EquipmentSlot names the six wearable positions every competitor fills.
type EquipmentSlot string

const (
	SlotBoard   EquipmentSlot = "board"
	SlotStones  EquipmentSlot = "stones"
	SlotBowl    EquipmentSlot = "bowl"
	SlotTable   EquipmentSlot = "table"
	SlotCushion EquipmentSlot = "cushion"
	SlotCharm   EquipmentSlot = "charm"
)

// EquipmentSlots lists all slots in display order.
var EquipmentSlots = []EquipmentSlot{
	SlotBoard, SlotStones, SlotBowl, SlotTable, SlotCushion, SlotCharm,
}

// Item is a single equipped piece. Bonus is the stat contribution this item
// adds to its owner's effective stats.
type Item struct {
	ID    string        `json:"id"`
	Slot  EquipmentSlot `json:"slot"`
	Grade ItemGrade     `json:"grade"`
	Bonus StatVector    `json:"bonus"`
}
