package diagnosis

import "strings"

// Kind classifies a prediction for presentation.
type Kind int

const (
	Unrecognized Kind = iota
	Healthy
	Diseased
)

func (k Kind) String() string {
	switch k {
	case Unrecognized:
		return "unrecognized"
	case Healthy:
		return "healthy"
	case Diseased:
		return "diseased"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON and MQTT payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RemedySource supplies remedy text for a label.
type RemedySource interface {
	Lookup(label string) string
}

// Outcome is what a prediction means for the user and for history.
type Outcome struct {
	Kind       Kind
	Prediction Prediction
	// Message is the text shown to the user.
	Message string
	// Advice is stored in the history record.
	Advice string
	// Remedy is empty unless Kind is Diseased.
	Remedy string

	CanTranslate bool
	CanChat      bool
	CanAnalyze   bool
	CanExport    bool
}

// Decide applies the label policy. Index 4 or the "other" label means the
// image is not a coffee leaf and takes priority over "nodisease".
func Decide(pred Prediction, remedies RemedySource) Outcome {
	label := strings.ToLower(pred.Label)

	switch {
	case label == LabelOther || pred.Index == UnrecognizedIndex:
		return Outcome{
			Kind:       Unrecognized,
			Prediction: pred,
			Message:    MessageUnrecognized,
			Advice:     AdviceUnrecognized,
		}
	case label == LabelNoDisease:
		return Outcome{
			Kind:       Healthy,
			Prediction: pred,
			Message:    MessageHealthy,
			Advice:     AdviceHealthy,
		}
	}

	remedy := remedies.Lookup(pred.Label)
	return Outcome{
		Kind:         Diseased,
		Prediction:   pred,
		Message:      DiseaseMessage(pred.Label, remedy),
		Advice:       remedy,
		Remedy:       remedy,
		CanTranslate: true,
		CanChat:      true,
		CanAnalyze:   true,
		CanExport:    true,
	}
}

// DiseaseMessage formats the headline for a detected disease, followed by
// the remedy when there is one.
func DiseaseMessage(label, remedy string) string {
	msg := "The disease predicted here is " + label + "."
	if remedy != "" {
		msg += "\nRemedies: " + remedy
	}
	return msg
}
