package types

import "time"

// GuideSpec is a registered linear-guide specification. Analysis results
// are keyed by its ID.
type GuideSpec struct {
	ID          int64     `json:"id" yaml:"id"`
	Series      string    `json:"series" yaml:"series"`   // e.g. "HRC25"
	Type        string    `json:"type" yaml:"type"`       // block type, e.g. "MN"
	Preload     string    `json:"preload" yaml:"preload"` // VC | V0 | V1 | V2
	C0          float64   `json:"c0" yaml:"c0"`           // static load rating, N
	C100        float64   `json:"c100" yaml:"c100"`       // dynamic load rating, N
	SealType    string    `json:"seal_type,omitempty" yaml:"seal_type"`
	SpeedMax    float64   `json:"speed_max,omitempty" yaml:"speed_max"` // m/s
	Stroke      float64   `json:"stroke,omitempty" yaml:"stroke"`       // mm
	Lubrication string    `json:"lubrication,omitempty" yaml:"lubrication"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Identity returns the analysis identity of the spec.
func (g GuideSpec) Identity() GuideIdentity {
	return GuideIdentity{SpecID: g.ID, Series: g.Series, Preload: g.Preload}
}
