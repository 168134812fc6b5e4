// Command eventable prunes events according to their retention policies.
//
// Event types named in the catalog must be declared in the binary before
// they can be enumerated, so most applications build their own command with
// eventable.Main(eventable.WithTypes(...)). This binary covers the catalog
// entries it knows nothing about by reporting them as skipped.
package main

import (
	_ "time/tzdata" // EVENTABLE_TIMEZONE must resolve in minimal containers

	"github.com/aarondfrancis/eventable"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	eventable.Main(eventable.WithVersion(version))
}
