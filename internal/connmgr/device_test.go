package connmgr

import (
	"testing"

	dbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluetooth-audio/internal/bluetooth"
)

const devPath = dbus.ObjectPath("/org/bluez/hci0/dev_00_11_22_AA_BB_CC")

func TestDeviceFromIfaces(t *testing.T) {
	ifaces := map[string]map[string]dbus.Variant{
		deviceIface: {
			"Address":   dbus.MakeVariant("00:11:22:AA:BB:CC"),
			"Name":      dbus.MakeVariant("Car Kit"),
			"Alias":     dbus.MakeVariant("My Car"),
			"Paired":    dbus.MakeVariant(true),
			"Connected": dbus.MakeVariant(false),
			"UUIDs": dbus.MakeVariant([]string{
				"0000110b-0000-1000-8000-00805f9b34fb",
				"00001108-0000-1000-8000-00805f9b34fb",
				"0000111E-0000-1000-8000-00805F9B34FB",
			}),
		},
	}

	dev, ok := deviceFromIfaces(devPath, ifaces)
	require.True(t, ok)
	assert.Equal(t, string(devPath), dev.Path)
	assert.Equal(t, bluetooth.MustParseAddress("00:11:22:AA:BB:CC"), dev.Address)
	assert.Equal(t, "Car Kit", dev.Name)
	assert.Equal(t, "My Car", dev.DisplayName())
	assert.True(t, dev.Paired)
	assert.False(t, dev.Connected)
	assert.Equal(t, bluetooth.ClassHandsfree, dev.Class)
	assert.True(t, isAudioDevice(dev))
}

func TestDeviceFromIfacesFallsBackToPath(t *testing.T) {
	dev, ok := deviceFromIfaces(devPath, map[string]map[string]dbus.Variant{
		deviceIface: {},
	})
	require.True(t, ok)
	assert.Equal(t, "00:11:22:AA:BB:CC", dev.Address.String())
	assert.Equal(t, "00:11:22:AA:BB:CC", dev.DisplayName())
	assert.Equal(t, bluetooth.ClassOther, dev.Class)
	assert.False(t, isAudioDevice(dev))
}

func TestDeviceFromIfacesNotADevice(t *testing.T) {
	_, ok := deviceFromIfaces("/org/bluez/hci0", map[string]map[string]dbus.Variant{
		adapterIface: {"Powered": dbus.MakeVariant(true)},
	})
	assert.False(t, ok)
}

func TestBestClass(t *testing.T) {
	tests := []struct {
		name  string
		uuids []string
		want  bluetooth.ServiceClass
	}{
		{"none", nil, bluetooth.ClassOther},
		{"garbage", []string{"not-a-uuid"}, bluetooth.ClassOther},
		{"headset", []string{"00001108-0000-1000-8000-00805f9b34fb"}, bluetooth.ClassHeadset},
		{"generic audio", []string{"00001203-0000-1000-8000-00805f9b34fb"}, bluetooth.ClassGenericAudio},
		{"handsfree wins", []string{
			"00001203-0000-1000-8000-00805f9b34fb",
			"0000111e-0000-1000-8000-00805f9b34fb",
			"00001108-0000-1000-8000-00805f9b34fb",
		}, bluetooth.ClassHandsfree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bestClass(tt.uuids))
		})
	}
}

func TestGatewayProfiles(t *testing.T) {
	hf := gatewayProfiles[bluetooth.ClassHandsfree]
	assert.Equal(t, "0000111f-0000-1000-8000-00805f9b34fb", hf.local.String())
	assert.Equal(t, "0000111e-0000-1000-8000-00805f9b34fb", hf.remote.String())

	_, ok := gatewayProfiles[bluetooth.ClassGenericAudio]
	assert.False(t, ok)
}

func TestMacFromPath(t *testing.T) {
	assert.Equal(t, "00:11:22:AA:BB:CC", macFromPath(devPath))
	assert.Empty(t, macFromPath("/org/bluez/hci0"))
}
