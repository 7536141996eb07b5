package radeon

import "github.com/c35s/radeonfb/reg"

// DpmsState is a display power management state.
type DpmsState int

const (
	DpmsOn DpmsState = iota
	DpmsStandby
	DpmsSuspend
	DpmsOff
)

func (s DpmsState) String() string {
	switch s {
	case DpmsOn:
		return "on"
	case DpmsStandby:
		return "standby"
	case DpmsSuspend:
		return "suspend"
	case DpmsOff:
		return "off"
	}

	return "unknown"
}

// Dpms returns the power state of the primary display.
func (d *Driver) Dpms() DpmsState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dpms()
}

// SetDpms sets the power state of the primary display. A flat panel is
// either on or off.
func (d *Driver) SetDpms(s DpmsState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setDpms(s)
}

func (d *Driver) dpms() DpmsState {
	if d.monitor == MonitorLCD {
		v := d.io.Reg32(reg.LvdsGenCntl)
		if v&reg.LvdsDisplayDis != 0 || v&reg.LvdsOn == 0 {
			return DpmsOff
		}

		return DpmsOn
	}

	switch d.io.Reg32(reg.CrtcExtCntl) & crtcExtKeep {
	case 0:
		return DpmsOn
	case reg.CrtcDisplayDis | reg.CrtcHsyncDis:
		return DpmsStandby
	case reg.CrtcDisplayDis | reg.CrtcVsyncDis:
		return DpmsSuspend
	}

	return DpmsOff
}

func (d *Driver) setDpms(s DpmsState) {
	if d.monitor == MonitorLCD {
		v := uint32(reg.LvdsDisplayDis)
		if s == DpmsOn {
			v = reg.LvdsOn | reg.LvdsBlon
		}

		d.io.SetReg32Masked(reg.LvdsGenCntl, v, ^uint32(lvdsKeep))
		return
	}

	var v uint32
	switch s {
	case DpmsStandby:
		v = reg.CrtcDisplayDis | reg.CrtcHsyncDis
	case DpmsSuspend:
		v = reg.CrtcDisplayDis | reg.CrtcVsyncDis
	case DpmsOff:
		v = crtcExtKeep
	}

	d.io.SetReg32Masked(reg.CrtcExtCntl, v, ^uint32(crtcExtKeep))
}
