// Package env provides facts about the machine the device runs on.
package env

import (
	"github.com/denisbrodbeck/machineid"
)

// AppID salts the machine id so the raw id is never published.
const AppID = "elx"

// DeviceIDLen is the length of the device id in hex digits.
const DeviceIDLen = 12

// DeviceID derives a stable id of the device from the machine id.
func DeviceID() (string, error) {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		return "", err
	}
	if len(id) > DeviceIDLen {
		id = id[:DeviceIDLen]
	}
	return id, nil
}

// MustDeviceID is DeviceID panicking on error.
func MustDeviceID() string {
	id, err := DeviceID()
	if err != nil {
		panic(err)
	}
	return id
}
