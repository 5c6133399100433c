package lower

import "fmt"

// EnumConflictError reports two enum literals of one attribute that map
// to the same generated variant name.
type EnumConflictError struct {
	Resource  string
	Operation string
	Attr      string
	Variant   string
	Values    []string
}

func (e *EnumConflictError) Error() string {
	return fmt.Sprintf("resource %s: operation %s: enum values %q of %s collide as variant %s",
		e.Resource, e.Operation, e.Values, e.Attr, e.Variant)
}
