package connmgr

import (
	"strings"

	dbus "github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"bluetooth-audio/internal/bluetooth"
)

const (
	bluezService        = "org.bluez"
	profileIface        = "org.bluez.Profile1"
	profileManagerIface = "org.bluez.ProfileManager1"
	deviceIface         = "org.bluez.Device1"
	adapterIface        = "org.bluez.Adapter1"
	objManagerIface     = "org.freedesktop.DBus.ObjectManager"
	propsIface          = "org.freedesktop.DBus.Properties"
)

// managedObjects is the reply of ObjectManager.GetManagedObjects.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// gatewayProfile is the local profile registered to reach a remote class.
type gatewayProfile struct {
	name   string
	local  uuid.UUID
	remote uuid.UUID
}

var gatewayProfiles = map[bluetooth.ServiceClass]gatewayProfile{
	bluetooth.ClassHandsfree: {
		name:   "Hands-Free Audio Gateway",
		local:  bluetooth.HandsfreeAGUUID,
		remote: bluetooth.HandsfreeUUID,
	},
	bluetooth.ClassHeadset: {
		name:   "Headset Audio Gateway",
		local:  bluetooth.HeadsetAGUUID,
		remote: bluetooth.HeadsetUUID,
	},
}

// deviceFromIfaces builds a Device from the interfaces of one object. ok is
// false when the object is not a device.
func deviceFromIfaces(path dbus.ObjectPath, ifaces map[string]map[string]dbus.Variant) (Device, bool) {
	props, ok := ifaces[deviceIface]
	if !ok {
		return Device{}, false
	}

	dev := Device{Path: string(path)}

	if v, ok := props["Address"]; ok {
		s, _ := v.Value().(string)
		dev.Address, _ = bluetooth.ParseAddress(s)
	}
	if dev.Address.IsZero() {
		dev.Address, _ = bluetooth.ParseAddress(macFromPath(path))
	}

	if v, ok := props["Name"]; ok {
		dev.Name, _ = v.Value().(string)
	}
	if v, ok := props["Alias"]; ok {
		dev.Alias, _ = v.Value().(string)
	}
	if v, ok := props["Paired"]; ok {
		dev.Paired, _ = v.Value().(bool)
	}
	if v, ok := props["Connected"]; ok {
		dev.Connected, _ = v.Value().(bool)
	}
	if v, ok := props["UUIDs"]; ok {
		uu, _ := v.Value().([]string)
		dev.Class = bestClass(uu)
	}

	return dev, true
}

// bestClass returns the most capable audio class among the advertised
// service UUIDs.
func bestClass(list []string) bluetooth.ServiceClass {
	best := bluetooth.ClassOther
	for _, s := range list {
		u, err := uuid.Parse(s)
		if err != nil {
			continue
		}

		if c := bluetooth.ClassOf(u); c > best {
			best = c
		}
	}

	return best
}

// isAudioDevice reports whether a BlueZ profile can connect to dev.
func isAudioDevice(dev Device) bool {
	_, ok := gatewayProfiles[dev.Class]
	return ok
}

// macFromPath extracts the address from .../dev_XX_XX_XX_XX_XX_XX.
func macFromPath(p dbus.ObjectPath) string {
	s := string(p)

	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}

	return strings.ReplaceAll(s[idx+5:], "_", ":")
}
