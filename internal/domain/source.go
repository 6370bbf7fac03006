package domain

type FetchMethod string

const (
	MethodFast     FetchMethod = "fast"
	MethodRendered FetchMethod = "rendered"
	MethodAuto     FetchMethod = "auto"
)

func (m FetchMethod) Valid() bool {
	switch m {
	case MethodFast, MethodRendered, MethodAuto:
		return true
	}
	return false
}

// SourceConfig describes one auction portal. It is static for the lifetime of the process.
type SourceConfig struct {
	Name                string      `yaml:"name" json:"name"`
	URL                 string      `yaml:"url" json:"url"`
	Method              FetchMethod `yaml:"method" json:"method"`
	SearchURL           string      `yaml:"search_url" json:"searchUrl,omitempty"`
	RequiresInteraction bool        `yaml:"requires_interaction" json:"requiresInteraction,omitempty"`
	Selectors           Selectors   `yaml:"selectors" json:"selectors"`
	Interaction         Interaction `yaml:"interaction" json:"interaction"`
}

// Selectors are optional CSS selectors preferred over text patterns when present.
type Selectors struct {
	Container    string `yaml:"container" json:"container,omitempty"`
	Locality     string `yaml:"locality" json:"locality,omitempty"`
	Price        string `yaml:"price" json:"price,omitempty"`
	PropertyType string `yaml:"property_type" json:"propertyType,omitempty"`
	Link         string `yaml:"link" json:"link,omitempty"`
}

type Interaction struct {
	Input  string `yaml:"input" json:"input,omitempty"`
	Submit string `yaml:"submit" json:"submit,omitempty"`
}
