package store

import "time"

type Kind string

const (
	KindTechnical  Kind = "technical"
	KindBehavioral Kind = "behavioral"
	KindCoding     Kind = "coding"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTechnical, KindBehavioral, KindCoding:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

var (
	validKinds        = []string{string(KindTechnical), string(KindBehavioral), string(KindCoding)}
	validDifficulties = []string{string(DifficultyEasy), string(DifficultyMedium), string(DifficultyHard)}
)

// QuestionRecord is a pre-authored interview question. JSON names follow the
// question bank API the browser client already speaks.
type QuestionRecord struct {
	ID              string     `json:"id" bson:"_id" yaml:"id,omitempty"`
	Text            string     `json:"question" bson:"question" yaml:"question" validate:"required"`
	Kind            Kind       `json:"type" bson:"type" yaml:"type" validate:"required,oneof=technical behavioral coding"`
	Difficulty      Difficulty `json:"difficulty" bson:"difficulty" yaml:"difficulty" validate:"required,oneof=easy medium hard"`
	Category        string     `json:"category" bson:"category" yaml:"category"`
	Tags            []string   `json:"tags" bson:"tags" yaml:"tags"`
	ReferenceAnswer string     `json:"answer,omitempty" bson:"answer" yaml:"answer,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt" yaml:"-"`
}

// QuestionUpdate carries the mutable fields of a record; nil means unchanged.
// ID and CreatedAt are deliberately absent.
type QuestionUpdate struct {
	Text            *string     `json:"question,omitempty" validate:"omitempty,notblank"`
	Kind            *Kind       `json:"type,omitempty" validate:"omitempty,oneof=technical behavioral coding"`
	Difficulty      *Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Category        *string     `json:"category,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	ReferenceAnswer *string     `json:"answer,omitempty"`
}

func (u QuestionUpdate) Empty() bool {
	return u.Text == nil && u.Kind == nil && u.Difficulty == nil && u.Category == nil && u.Tags == nil && u.ReferenceAnswer == nil
}
