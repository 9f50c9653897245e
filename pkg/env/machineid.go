package env

import (
	"strconv"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID keys the hashed machine id.
const AppID = "hmtl"

var protectedID = machineid.ProtectedID

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := protectedID(AppID)
	if err != nil {
		panic(err)
	}
	return id
}

// DeviceID derives a non-zero device id from the machine id, or returns 0
// when the machine id isn't available.
func DeviceID() uint16 {
	id, err := protectedID(AppID)
	if err != nil {
		glog.Warningf("env: machine id unavailable: %v", err)
		return 0
	}
	return deviceIDFrom(id)
}

func deviceIDFrom(id string) uint16 {
	if len(id) < 4 {
		return 0
	}
	v, err := strconv.ParseUint(id[:4], 16, 16)
	if err != nil {
		return 0
	}
	if v == 0 {
		// zero matches every node in SET_ADDR
		v = 1
	}
	return uint16(v)
}
