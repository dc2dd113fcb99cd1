package scan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTagClassifier_Classify(t *testing.T) {
	metal := SurfaceOverride{Tag: "metal", Color: Color{R: 0.8, G: 0.8, B: 0.9, A: 1}, Lifetime: 5}
	rock := SurfaceOverride{Tag: "rock", Color: Color{R: 0.4, G: 0.3, B: 0.2, A: 1}, Lifetime: 10}

	tests := []struct {
		name      string
		overrides []SurfaceOverride
		tags      []string
		want      SurfaceOverride
		wantOK    bool
	}{
		{
			name:      "second tag matches",
			overrides: []SurfaceOverride{metal},
			tags:      []string{"rock", "metal"},
			want:      metal,
			wantOK:    true,
		},
		{
			name:   "no overrides",
			tags:   []string{"rock", "metal"},
			wantOK: false,
		},
		{
			name:      "surface order wins over override order",
			overrides: []SurfaceOverride{metal, rock},
			tags:      []string{"rock", "metal"},
			want:      rock,
			wantOK:    true,
		},
		{
			name:      "duplicate surface tags",
			overrides: []SurfaceOverride{metal},
			tags:      []string{"metal", "metal"},
			want:      metal,
			wantOK:    true,
		},
		{
			name:      "no tags",
			overrides: []SurfaceOverride{metal},
			wantOK:    false,
		},
		{
			name:      "unrelated tags",
			overrides: []SurfaceOverride{metal},
			tags:      []string{"glass", "wood"},
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTagClassifier(tt.overrides)
			got, ok := c.Classify(tt.tags)
			if ok != tt.wantOK {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTagClassifier_FirstDefinitionKept(t *testing.T) {
	first := SurfaceOverride{Tag: "metal", Lifetime: 1}
	second := SurfaceOverride{Tag: "metal", Lifetime: 2}

	c := NewTagClassifier([]SurfaceOverride{first, second})
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	got, _ := c.Classify([]string{"metal"})
	if got.Lifetime != 1 {
		t.Errorf("Lifetime = %v, want the first definition (1)", got.Lifetime)
	}
}

func TestTagClassifier_Nil(t *testing.T) {
	var c *TagClassifier
	if _, ok := c.Classify([]string{"metal"}); ok {
		t.Error("nil classifier should never match")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
