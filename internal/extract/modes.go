package extract

import (
	"fmt"
	"strings"
)

// AnalysisMode selects how surviving pixels are reduced to one colour.
type AnalysisMode int

const (
	PureAverage AnalysisMode = iota
	MostFrequentColor
	MostFrequentWholeColor
)

func (m AnalysisMode) String() string {
	switch m {
	case PureAverage:
		return "PURE_AVERAGE"
	case MostFrequentColor:
		return "MOST_FREQUENT_COLOR"
	case MostFrequentWholeColor:
		return "MOST_FREQUENT_WHOLE_COLOR"
	default:
		return fmt.Sprintf("AnalysisMode(%d)", int(m))
	}
}

func ParseAnalysisMode(s string) (AnalysisMode, error) {
	switch normalize(s) {
	case "PURE_AVERAGE", "AVERAGE":
		return PureAverage, nil
	case "MOST_FREQUENT_COLOR":
		return MostFrequentColor, nil
	case "MOST_FREQUENT_WHOLE_COLOR", "MODE":
		return MostFrequentWholeColor, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// BiasMode selects the spatial emphasis applied to each pixel.
type BiasMode int

const (
	NoBias BiasMode = iota
	RuleOfThirds
	GoldenRatio
)

func (b BiasMode) String() string {
	switch b {
	case NoBias:
		return "NONE"
	case RuleOfThirds:
		return "RULE_OF_THIRDS"
	case GoldenRatio:
		return "GOLDEN_RATIO"
	default:
		return fmt.Sprintf("BiasMode(%d)", int(b))
	}
}

func ParseBiasMode(s string) (BiasMode, error) {
	switch normalize(s) {
	case "NONE", "":
		return NoBias, nil
	case "RULE_OF_THIRDS":
		return RuleOfThirds, nil
	case "GOLDEN_RATIO":
		return GoldenRatio, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBias, s)
}

func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
