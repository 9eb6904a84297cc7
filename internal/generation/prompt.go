package generation

import (
	"fmt"
	"strings"
)

// Quality tiers and their credit cost.
const (
	QualityStandard = "standard"
	QualityPremium  = "premium"
)

var qualityCost = map[string]int{
	QualityStandard: 1,
	QualityPremium:  2,
}

// CostFor returns the credit cost of a quality tier, or 0 for an unknown one.
func CostFor(quality string) int {
	return qualityCost[quality]
}

var roomTypes = map[string]string{
	"living_room": "living room",
	"bedroom":     "bedroom",
	"kitchen":     "kitchen",
	"bathroom":    "bathroom",
	"dining_room": "dining room",
	"home_office": "home office",
}

var themes = map[string]string{
	"modern":       "modern",
	"minimalist":   "minimalist",
	"scandinavian": "scandinavian",
	"industrial":   "industrial",
	"bohemian":     "bohemian",
	"vintage":      "vintage",
	"tropical":     "tropical",
	"luxury":       "luxurious",
}

// ValidationError reports which request field is invalid; the handler
// surfaces it verbatim with a 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateRequest(roomType, theme, quality string) error {
	if _, ok := roomTypes[roomType]; !ok {
		return &ValidationError{Field: "roomType", Message: fmt.Sprintf("unknown room type %q", roomType)}
	}
	if _, ok := themes[theme]; !ok {
		return &ValidationError{Field: "theme", Message: fmt.Sprintf("unknown theme %q", theme)}
	}
	if _, ok := qualityCost[quality]; !ok {
		return &ValidationError{Field: "quality", Message: fmt.Sprintf("unknown quality %q", quality)}
	}
	return nil
}

// BuildPrompt renders the deterministic prompt for a validated request.
// The same inputs always produce the same prompt.
func BuildPrompt(roomType, theme, quality, custom string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "a %s %s", themes[theme], roomTypes[roomType])
	if quality == QualityPremium {
		b.WriteString(", editorial magazine quality, 8k resolution")
	}
	if custom = strings.TrimSpace(custom); custom != "" {
		b.WriteString(", ")
		b.WriteString(custom)
	}
	return b.String()
}
