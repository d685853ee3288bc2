package adapter

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Registration couples a source type name with its constructor for the
// built-in catalog.
type Registration struct {
	SourceType  string
	Constructor Constructor
}

// builtins is the compile-time catalog of adapter implementations shipped
// with this module. Each implementation file appends itself via
// registerBuiltin in an init function, keyed by its source type name.
var builtins []Registration

func registerBuiltin(sourceType string, ctor Constructor) {
	builtins = append(builtins, Registration{SourceType: sourceType, Constructor: ctor})
}

// Discover registers every built-in adapter with the given registry. A
// failing entry is reported and skipped so one bad adapter never prevents the
// others from loading. It returns the successfully registered source types
// and the per-entry failures.
func Discover(reg *Registry) ([]string, []error) {
	var (
		discovered []string
		errs       []error
	)
	for _, b := range builtins {
		if err := reg.Register(b.SourceType, b.Constructor); err != nil {
			logrus.Warnf("skipping adapter '%s': %v", b.SourceType, err)
			errs = append(errs, fmt.Errorf("adapter '%s': %w", b.SourceType, err))
			continue
		}
		discovered = append(discovered, b.SourceType)
	}
	logrus.Infof("discovered adapters: %v", discovered)
	return discovered, errs
}
