// Package assets embeds the default destination catalog used to seed an
// empty database.
package assets

import (
	_ "embed"
)

//go:embed destinations.json
var destinations []byte

// Destinations returns the embedded catalog as a JSON array.
func Destinations() []byte {
	return destinations
}
