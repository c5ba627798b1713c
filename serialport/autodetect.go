package serialport

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNoPorts is returned by Autodetect when no serial port is visible.
var ErrNoPorts = errors.New("no serial port found, please specify an upload port")

// Autodetect returns the upload port. A configured port always wins.
// Otherwise the first USB port by name is used, falling back to the first
// port of any kind.
func Autodetect(l DetailedLister, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	ports, err := l.ListDetailed()
	if err != nil {
		return "", err
	}
	sort.Slice(ports, func(i, j int) bool {
		return ports[i].Name < ports[j].Name
	})
	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}
	if len(ports) > 0 {
		return ports[0].Name, nil
	}
	return "", ErrNoPorts
}
