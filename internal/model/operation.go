package model

type OperationType string

const (
	OpInsert    OperationType = "insert"
	OpDelete    OperationType = "delete"
	OpReplace   OperationType = "replace"
	OpCursor    OperationType = "cursor"
	OpSelection OperationType = "selection"
)

// MutatesCode reports whether operations of this type replace the document
// text. Cursor and selection operations only touch presence state.
func (t OperationType) MutatesCode() bool {
	switch t {
	case OpInsert, OpDelete, OpReplace:
		return true
	}
	return false
}

// Range is a closed interval of document offsets, 0-based, End >= Start.
type Range struct {
	Start int `json:"start" bson:"start"`
	End   int `json:"end" bson:"end"`
}

// Overlaps uses closed-interval intersection: adjacent ranges sharing an
// endpoint do overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start <= other.End && other.Start <= r.End
}

type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Operation is a single client edit or presence update. It is transient:
// applied to the session record and then discarded. Content carries the
// complete new document text for mutating types, not a patch.
type Operation struct {
	UserID  string        `json:"userId"`
	Type    OperationType `json:"type"`
	Range   *Range        `json:"range,omitempty"`
	Content *string       `json:"content,omitempty"`
	Cursor  *Cursor       `json:"cursor,omitempty"`
	Version int           `json:"version"`
}
