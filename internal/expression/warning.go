package expression

import "fmt"

// WarningCode classifies a recoverable problem found while processing a character.
type WarningCode string

const (
	WarnMissingExpressionSource WarningCode = "MissingExpressionSource"
	WarnUnresolvedMorphTarget   WarningCode = "UnresolvedMorphTarget"
	WarnDuplicateBinding        WarningCode = "DuplicateBinding"
	WarnWeightOutOfRange        WarningCode = "WeightOutOfRange"
	WarnNoQualifyingFaceMesh    WarningCode = "NoQualifyingFaceMesh"
	WarnFramingCorrected        WarningCode = "FramingCorrected"
	WarnMalformedExpression     WarningCode = "MalformedExpression"
)

// Warning is a recoverable problem tied to a character and, optionally, an expression.
type Warning struct {
	Code       WarningCode `json:"code"`
	Character  string      `json:"character"`
	Expression string      `json:"expression,omitempty"`
	Detail     string      `json:"detail"`
}

func (w Warning) String() string {
	if w.Expression != "" {
		return fmt.Sprintf("%s [%s/%s]: %s", w.Code, w.Character, w.Expression, w.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.Character, w.Detail)
}
