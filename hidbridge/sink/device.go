package sink

import (
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"github.com/muka/go-bluetooth/bluez/profile/profile"
	"github.com/muka/go-bluetooth/hw/linux/cmd"

	"dio.wtf/hidbridge/hidbridge/log"
)

// adapterDevice wraps the first BlueZ adapter on the bus.
type adapterDevice struct {
	*adapter.Adapter1
	objectPath string
	deviceID   string
}

func newAdapterDevice() (d *adapterDevice, err error) {
	objects, err := getManagedObjects()
	if nil != err {
		return
	}

	var adapter1 *adapter.Adapter1
	var objectPath string
	for path, ifaces := range objects {
		if _, ok := ifaces[adapter.Adapter1Interface]; ok {
			dev, err := adapter.NewAdapter1(path)
			if nil != err {
				return nil, err
			}
			adapter1 = dev
			objectPath = string(path)
			break
		}
	}
	if adapter1 == nil {
		return nil, errNoAdapter
	}

	s := strings.Split(objectPath, "/")
	deviceID := s[len(s)-1]
	log.DebugF("using adapter under object path: %s", objectPath)
	return &adapterDevice{
		Adapter1:   adapter1,
		objectPath: objectPath,
		deviceID:   deviceID,
	}, nil
}

// SetClass sets the BR/EDR device class; bluez exposes no property for it.
func (d *adapterDevice) SetClass(cls string) error {
	_, err := cmd.Exec("hciconfig", d.deviceID, "class", cls)
	return err
}

func (d *adapterDevice) RegisterProfile(profilePath, uuid string, options map[string]interface{}) error {
	mgr, err := profile.NewProfileManager1()
	if nil != err {
		return err
	}
	return mgr.RegisterProfile(dbus.ObjectPath(profilePath), uuid, options)
}

// ConnectedHosts lists object paths of currently connected remote devices.
func (d *adapterDevice) ConnectedHosts() (paths []string, err error) {
	objects, err := getManagedObjects()
	if nil != err {
		return
	}

	for path, ifaces := range objects {
		if iface, ok := ifaces[device.Device1Interface]; ok {
			prop := new(device.Device1Properties)
			prop, err = prop.FromDBusMap(iface)
			if nil != err {
				return
			}
			if prop.Connected {
				paths = append(paths, string(path))
			}
		}
	}
	return
}

func dbusPath(s string) dbus.ObjectPath {
	return dbus.ObjectPath(s)
}

func getManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	om, err := bluez.GetObjectManager()
	if nil != err {
		return nil, err
	}
	objects, err := om.GetManagedObjects()
	if nil != err {
		return nil, err
	}
	return objects, nil
}
