// Package serialport enumerates serial ports and prepares a device for
// upload: buffer flush, 1200-bps touch and waiting for the bootloader port to
// appear.
package serialport

import (
	"sort"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortSet is a snapshot of the serial port names visible at one point in time.
type PortSet map[string]struct{}

// NewPortSet returns a set containing the given names.
func NewPortSet(names ...string) PortSet {
	s := make(PortSet, len(names))
	for _, name := range names {
		s[name] = struct{}{}
	}
	return s
}

// Has reports whether name is part of the snapshot.
func (s PortSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the port names sorted lexicographically.
func (s PortSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Added returns the ports present in s but absent from before, sorted
// lexicographically.
func (s PortSet) Added(before PortSet) []string {
	var added []string
	for name := range s {
		if !before.Has(name) {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	return added
}

// PortInfo is a single enumerated port with its USB identity, if any.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Lister returns the set of currently visible serial ports. Implementations
// must not cache: every call reflects the current OS state.
type Lister interface {
	ListPorts() (PortSet, error)
}

// DetailedLister additionally reports USB details for every port.
type DetailedLister interface {
	ListDetailed() ([]PortInfo, error)
}

// OSLister enumerates the ports of the host operating system.
type OSLister struct{}

// ListPorts implements Lister.
func (l OSLister) ListPorts() (PortSet, error) {
	ports, err := l.ListDetailed()
	if err != nil {
		return nil, err
	}
	set := make(PortSet, len(ports))
	for _, p := range ports {
		set[p.Name] = struct{}{}
	}
	return set, nil
}

// ListDetailed implements DetailedLister. When the detailed enumerator fails
// or is unsupported on this platform, the plain port list is used instead.
func (OSLister) ListDetailed() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			if d == nil || d.Name == "" {
				continue
			}
			ports = append(ports, PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return ports, nil
	}
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "could not list serial ports")
	}
	ports := make([]PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortInfo{Name: name})
	}
	return ports, nil
}
