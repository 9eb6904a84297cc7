package generation

import "testing"

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		roomType string
		theme    string
		quality  string
		custom   string
		want     string
	}{
		{
			name:     "standard",
			roomType: "living_room",
			theme:    "modern",
			quality:  QualityStandard,
			want:     "a modern living room",
		},
		{
			name:     "premium adds quality suffix",
			roomType: "bedroom",
			theme:    "scandinavian",
			quality:  QualityPremium,
			want:     "a scandinavian bedroom, editorial magazine quality, 8k resolution",
		},
		{
			name:     "luxury theme uses display form",
			roomType: "dining_room",
			theme:    "luxury",
			quality:  QualityStandard,
			want:     "a luxurious dining room",
		},
		{
			name:     "custom prompt appended",
			roomType: "home_office",
			theme:    "industrial",
			quality:  QualityStandard,
			custom:   "with exposed brick walls",
			want:     "a industrial home office, with exposed brick walls",
		},
		{
			name:     "blank custom prompt ignored",
			roomType: "kitchen",
			theme:    "minimalist",
			quality:  QualityStandard,
			custom:   "   ",
			want:     "a minimalist kitchen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPrompt(tt.roomType, tt.theme, tt.quality, tt.custom)
			if got != tt.want {
				t.Errorf("BuildPrompt() = %q, want %q", got, tt.want)
			}
			// Same inputs, same prompt.
			if again := BuildPrompt(tt.roomType, tt.theme, tt.quality, tt.custom); again != got {
				t.Errorf("BuildPrompt() not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestCostFor(t *testing.T) {
	if got := CostFor(QualityStandard); got != 1 {
		t.Errorf("CostFor(standard) = %d, want 1", got)
	}
	if got := CostFor(QualityPremium); got != 2 {
		t.Errorf("CostFor(premium) = %d, want 2", got)
	}
	if got := CostFor("hd"); got != 0 {
		t.Errorf("CostFor(unknown) = %d, want 0", got)
	}
}

func TestValidateRequest(t *testing.T) {
	for roomType := range roomTypes {
		for theme := range themes {
			if err := validateRequest(roomType, theme, QualityStandard); err != nil {
				t.Errorf("validateRequest(%s, %s, standard) = %v", roomType, theme, err)
			}
		}
	}

	if err := validateRequest("garage", "modern", QualityStandard); err == nil {
		t.Error("expected error for unknown room type")
	}
	if err := validateRequest("kitchen", "gothic", QualityStandard); err == nil {
		t.Error("expected error for unknown theme")
	}
	if err := validateRequest("kitchen", "modern", ""); err == nil {
		t.Error("expected error for empty quality")
	}
}
