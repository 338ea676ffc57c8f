package graph

import "time"

// Label is the type of a knowledge-graph entity.
type Label string

const (
	LabelLibrary     Label = "Library"
	LabelScript      Label = "Script"
	LabelModule      Label = "Module"
	LabelClass       Label = "Class"
	LabelAPI         Label = "API"
	LabelDescription Label = "Description"
	LabelReturnValue Label = "ReturnValue"
	LabelParameter   Label = "Parameter"
)

// Labels lists every entity label in ontology order.
var Labels = []Label{
	LabelLibrary, LabelScript, LabelModule, LabelClass,
	LabelAPI, LabelDescription, LabelReturnValue, LabelParameter,
}

// Relation is the type of a relationship between entities.
type Relation string

const (
	RelHasScript          Relation = "hasScript"
	RelContainModule      Relation = "containModule"
	RelInclude            Relation = "include"
	RelInherit            Relation = "inherit"
	RelHasMethod          Relation = "hasMethod"
	RelHasReturnValueType Relation = "hasReturnValueType"
	RelHasDescription     Relation = "hasDescription"
	RelHasReturnValue     Relation = "hasReturnValue"
	RelHasParameter       Relation = "hasParameter"
)

// Relations lists every relation in ontology order. inherit and
// hasReturnValueType are declared but never produced.
var Relations = []Relation{
	RelHasScript, RelContainModule, RelInclude, RelInherit, RelHasMethod,
	RelHasReturnValueType, RelHasDescription, RelHasReturnValue, RelHasParameter,
}

var relationLabels = map[Relation]string{
	RelHasScript:          "has script",
	RelContainModule:      "contain module",
	RelInclude:            "include",
	RelInherit:            "inherit",
	RelHasMethod:          "has method",
	RelHasReturnValueType: "has return value type",
	RelHasDescription:     "has description",
	RelHasReturnValue:     "has return value",
	RelHasParameter:       "has parameter",
}

// Label returns the human-readable ontology label of the relation.
func (r Relation) Label() string {
	if l, ok := relationLabels[r]; ok {
		return l
	}
	return string(r)
}

// Entity is one node of the knowledge graph.
type Entity struct {
	ID    string         `json:"id"`              // Sanitised token, unique within the graph
	Label Label          `json:"label"`           // Entity type
	Key   string         `json:"key"`             // Natural key, unique per label
	Text  string         `json:"text"`            // Display text
	Props map[string]any `json:"props,omitempty"` // Extra properties mirrored to stores
}

// Relationship is a directed, typed edge between two entity IDs.
type Relationship struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type Relation `json:"type"`
}

// GraphData is the serialised form of a knowledge graph.
type GraphData struct {
	Metadata  GraphMetadata  `json:"_metadata"`
	Entities  []Entity       `json:"entities"`
	Relations []Relationship `json:"relations"`
}

// GraphMetadata contains metadata about the graph.
type GraphMetadata struct {
	Version       string    `json:"version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Library       string    `json:"library"`
	EntityCount   int       `json:"entity_count"`
	RelationCount int       `json:"relation_count"`
}
