package model

// Direction is the cash-flow direction of a bank transaction.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionIn, DirectionOut:
		return true
	default:
		return false
	}
}

// LinkState is the persisted matching status of a document or transaction.
type LinkState string

const (
	LinkUnlinked  LinkState = "unlinked"
	LinkSuggested LinkState = "suggested"
	LinkPartial   LinkState = "partial"
	LinkLinked    LinkState = "linked"
)

// Matchable reports whether an entity in this state takes part in the main
// matching pools. Linked and partial entities only serve as history context.
// An empty state is treated as unlinked.
func (s LinkState) Matchable() bool {
	switch s {
	case LinkUnlinked, LinkSuggested, "":
		return true
	case LinkPartial, LinkLinked:
		return false
	default:
		return false
	}
}

// Valid reports whether s is a known link state.
func (s LinkState) Valid() bool {
	switch s {
	case LinkUnlinked, LinkSuggested, LinkPartial, LinkLinked:
		return true
	default:
		return false
	}
}

// MatchState is the state of a match decision.
type MatchState string

const (
	StateFinal     MatchState = "final"
	StatePartial   MatchState = "partial"
	StateSuggested MatchState = "suggested"
	StateAmbiguous MatchState = "ambiguous"
)

// Valid reports whether s is a known match state.
func (s MatchState) Valid() bool {
	switch s {
	case StateFinal, StatePartial, StateSuggested, StateAmbiguous:
		return true
	default:
		return false
	}
}

// Binding reports whether decisions in this state consume their entities
// (final or partial).
func (s MatchState) Binding() bool {
	switch s {
	case StateFinal, StatePartial:
		return true
	case StateSuggested, StateAmbiguous:
		return false
	default:
		return false
	}
}

// Rank orders states for acceptance. Lower ranks first.
func (s MatchState) Rank() int {
	switch s {
	case StateFinal:
		return 0
	case StatePartial:
		return 1
	case StateSuggested:
		return 2
	case StateAmbiguous:
		return 3
	default:
		return 4
	}
}

// LinkState maps a decision state to the link state it persists.
func (s MatchState) LinkState() LinkState {
	switch s {
	case StateFinal:
		return LinkLinked
	case StatePartial:
		return LinkPartial
	case StateSuggested, StateAmbiguous:
		return LinkSuggested
	default:
		return LinkSuggested
	}
}

// RelationType is the cardinality of a match between transactions and documents.
type RelationType string

const (
	RelationOneToOne   RelationType = "one_to_one"
	RelationOneToMany  RelationType = "one_to_many"
	RelationManyToOne  RelationType = "many_to_one"
	RelationManyToMany RelationType = "many_to_many"
)

// Valid reports whether r is a known relation type.
func (r RelationType) Valid() bool {
	switch r {
	case RelationOneToOne, RelationOneToMany, RelationManyToOne, RelationManyToMany:
		return true
	default:
		return false
	}
}

// Rank orders relation types for acceptance. Lower ranks first.
func (r RelationType) Rank() int {
	switch r {
	case RelationOneToOne:
		return 0
	case RelationOneToMany:
		return 1
	case RelationManyToOne:
		return 2
	case RelationManyToMany:
		return 3
	default:
		return 4
	}
}

// MatchedBy records who produced a decision.
type MatchedBy string

const (
	MatchedBySystem MatchedBy = "system"
	MatchedByUser   MatchedBy = "user"
)

// EventType is the trigger of a pipeline run.
type EventType string

const (
	EventBatch      EventType = "batch"
	EventTxCreated  EventType = "tx_created"
	EventDocCreated EventType = "doc_created"
)

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	switch e {
	case EventBatch, EventTxCreated, EventDocCreated:
		return true
	default:
		return false
	}
}
