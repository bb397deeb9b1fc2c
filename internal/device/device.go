package device

import (
	"github.com/shirou/gopsutil/v3/host"
)

// Probe reports whether the process runs on hardware eligible for push
// registration. Push providers reject tokens minted inside emulators, so
// virtualized guests are treated as ineligible.
type Probe interface {
	Physical() bool
}

// HostProbe inspects the host via gopsutil.
type HostProbe struct{}

// Physical returns false when the host reports itself as a virtualization
// guest. Errors reading host info count as physical: a probe failure must not
// block registration on real hardware.
func (HostProbe) Physical() bool {
	info, err := host.Info()
	if err != nil {
		return true
	}
	return info.VirtualizationRole != "guest"
}

// Static is a fixed-answer probe, used in tests and as an override for
// deployments that want to skip the host inspection.
type Static bool

func (s Static) Physical() bool { return bool(s) }
