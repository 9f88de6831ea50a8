package schema

// Stage is a pipeline label a prospect can carry. Any stage may follow any
// other one: the order below is only used for display.
type Stage string

const (
	StageQualificacao Stage = "Qualificação"
	StageApresentacao Stage = "Apresentação"
	StageProposta     Stage = "Proposta"
	StageNegociacao   Stage = "Negociação"
	StageAtivacao     Stage = "Ativação"
)

// DefaultStage is assigned to new prospects and to persisted prospects whose
// stage is missing or unknown.
const DefaultStage = StageQualificacao

// ConversionStage is the terminal stage counted as a conversion when scoring.
const ConversionStage = StageAtivacao

var stageOrder = []Stage{
	StageQualificacao,
	StageApresentacao,
	StageProposta,
	StageNegociacao,
	StageAtivacao,
}

// Stages returns the display order of the pipeline.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Valid reports whether s belongs to the pipeline.
func (s Stage) Valid() bool {
	return s.Position() >= 0
}

// Position is the display index of s, or -1 if s is not a pipeline stage.
func (s Stage) Position() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsConversion reports whether s is the conversion stage.
func (s Stage) IsConversion() bool {
	return s == ConversionStage
}

// ParseStage maps a label to a stage. Unknown labels yield false.
func ParseStage(label string) (Stage, bool) {
	s := Stage(label)
	return s, s.Valid()
}
