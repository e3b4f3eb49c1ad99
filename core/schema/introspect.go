package schema

// AttributeInfo is the client-facing description of one attribute.
type AttributeInfo struct {
	Type        Type   `json:"type" yaml:"type"`
	Readonly    bool   `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Virtual     bool   `json:"virtual,omitempty" yaml:"virtual,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Introspection maps external attribute names to their descriptions.
// Remote clients build local models from it.
type Introspection map[string]AttributeInfo

// Introspect describes the schema, including the implicit id.
func (s *Schema) Introspect() Introspection {
	out := make(Introspection, len(s.attrs)+1)
	out[IDField] = AttributeInfo{Type: TypeUUID, Readonly: true}
	for _, a := range s.attrs {
		out[a.Name] = AttributeInfo{
			Type:        a.Type,
			Readonly:    a.Readonly,
			Virtual:     !a.Persist,
			Description: a.Description,
		}
	}
	return out
}
