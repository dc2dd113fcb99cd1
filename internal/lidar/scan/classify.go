package scan

// SurfaceOverride replaces the distance-based appearance of samples that hit
// a surface carrying Tag.
type SurfaceOverride struct {
	Tag      string  `json:"tag"`
	Color    Color   `json:"color"`
	Lifetime float64 `json:"lifetime"`
}

// TagClassifier maps surface tags to overrides.
type TagClassifier struct {
	overrides map[string]SurfaceOverride
}

// NewTagClassifier indexes overrides by tag. When a tag appears more than
// once the first definition is kept.
func NewTagClassifier(overrides []SurfaceOverride) *TagClassifier {
	m := make(map[string]SurfaceOverride, len(overrides))
	for _, o := range overrides {
		if _, exists := m[o.Tag]; exists {
			continue
		}
		m[o.Tag] = o
	}
	return &TagClassifier{overrides: m}
}

// Classify returns the override for the first tag, in surface order, that has
// one. The second result is false when no tag matches.
func (c *TagClassifier) Classify(tags []string) (SurfaceOverride, bool) {
	if c == nil || len(c.overrides) == 0 {
		return SurfaceOverride{}, false
	}
	for _, tag := range tags {
		if o, ok := c.overrides[tag]; ok {
			return o, true
		}
	}
	return SurfaceOverride{}, false
}

// Len returns the number of distinct tags with an override.
func (c *TagClassifier) Len() int {
	if c == nil {
		return 0
	}
	return len(c.overrides)
}
