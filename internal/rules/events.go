package rules

import "github.com/cleanairroute/cleanairroute/internal/geo"

// Field names a search endpoint slot.
type Field string

const (
	FieldStart Field = "start"
	FieldEnd   Field = "end"
)

// MapClicked is the input event for a tap on the map background.
type MapClicked struct {
	Point geo.Point
}

// AddressCommitted is the input event for a committed address field: the
// user finished typing and left the field without picking a suggestion.
type AddressCommitted struct {
	Field Field
	Text  string
}
