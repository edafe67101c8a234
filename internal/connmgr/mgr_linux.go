//go:build linux

package connmgr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	dbus "github.com/godbus/dbus/v5"
	"github.com/rs/xid"

	"bluetooth-audio/internal/bluetooth"
)

// objectRoot prefixes the paths of exported Profile1 objects.
const objectRoot = "/org/bluetooth_audio/connmgr/"

// New returns a manager for the system bus. The bus is connected on first
// use.
func New(logger *slog.Logger) Mgr {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &mgr{
		logger:   logger,
		profiles: make(map[bluetooth.ServiceClass]*profile),
	}
}

type mgr struct {
	mu     sync.Mutex
	closed bool

	bus      *dbus.Conn
	profiles map[bluetooth.ServiceClass]*profile

	// connectMu serializes Connect so that each profile has at most one
	// waiter.
	connectMu sync.Mutex

	logger *slog.Logger

	// cleanup functions run once in Close, in reverse order.
	cleanup []func()
}

// ensureBusLocked connects to the system bus if not yet connected.
func (m *mgr) ensureBusLocked(ctx context.Context) error {
	if m.bus != nil {
		return nil
	}

	c, err := dbus.SystemBus()
	if err != nil {
		return wrap(ctx, err, "system-bus", "Cannot connect to the system bus")
	}
	m.bus = c

	// Closed last.
	m.cleanup = append(m.cleanup, func() { _ = m.bus.Close() })

	return nil
}

// acquire returns the bus, failing after Close.
func (m *mgr) acquire(ctx context.Context) (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := m.ensureBusLocked(ctx); err != nil {
		return nil, err
	}

	return m.bus, nil
}

// profile implements org.bluez.Profile1 and hands sockets to a waiting
// Connect.
type profile struct {
	path dbus.ObjectPath
	ch   chan connection
}

type connection struct {
	fd  int
	dev dbus.ObjectPath
}

// Release is called by BlueZ when the profile is unregistered.
func (p *profile) Release() *dbus.Error { return nil }

// Cancel is called when a pending request is aborted.
func (p *profile) Cancel() *dbus.Error { return nil }

// RequestDisconnection is ignored; the owner of the socket closes it.
func (p *profile) RequestDisconnection(_ dbus.ObjectPath) *dbus.Error { return nil }

// NewConnection delivers a connected RFCOMM socket to the waiting Connect,
// or rejects it when nobody is waiting.
func (p *profile) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	select {
	case p.ch <- connection{fd: int(fd), dev: dev}:
		return nil
	default:
		closeFD(int(fd))
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"no pending connect"}}
	}
}

// drain closes sockets delivered after an earlier Connect gave up.
func (p *profile) drain() {
	for {
		select {
		case c := <-p.ch:
			closeFD(c.fd)
		default:
			return
		}
	}
}

// ensureProfile exports and registers the client profile for class once.
func (m *mgr) ensureProfile(ctx context.Context, class bluetooth.ServiceClass, gp gatewayProfile) (*dbus.Conn, *profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrClosed
	}
	if err := m.ensureBusLocked(ctx); err != nil {
		return nil, nil, err
	}
	if p, ok := m.profiles[class]; ok {
		return m.bus, p, nil
	}

	p := &profile{
		path: dbus.ObjectPath(objectRoot + class.String() + "/p" + xid.New().String()),
		ch:   make(chan connection, 1),
	}
	if err := m.bus.Export(p, p.path, profileIface); err != nil {
		return nil, nil, wrap(ctx, err, "export-profile", "Cannot export profile object",
			"profile", gp.name)
	}

	opts := map[string]dbus.Variant{
		"Name":                  dbus.MakeVariant(gp.name),
		"Role":                  dbus.MakeVariant("client"),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
	}
	pm := m.bus.Object(bluezService, dbus.ObjectPath("/org/bluez"))
	if call := pm.CallWithContext(ctx, profileManagerIface+".RegisterProfile", 0, p.path, gp.local.String(), opts); call.Err != nil {
		_ = m.bus.Export(nil, p.path, profileIface)
		return nil, nil, wrap(ctx, call.Err, "register-profile", "Cannot register profile with BlueZ",
			"profile", gp.name)
	}

	bus := m.bus
	m.cleanup = append(m.cleanup, func() {
		_ = pm.Call(profileManagerIface+".UnregisterProfile", 0, p.path).Err
		_ = bus.Export(nil, p.path, profileIface)
		p.drain()
	})
	m.profiles[class] = p

	m.logger.Debug("registered bluez profile", "profile", gp.name, "path", string(p.path))

	return bus, p, nil
}

func (m *mgr) ScanAudio(ctx context.Context) ([]Device, error) {
	bus, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}

	objs, err := getManagedObjects(ctx, bus)
	if err != nil {
		return nil, err
	}

	// Start discovery on all adapters (best-effort); stop when done.
	for path, ifaces := range objs {
		if _, ok := ifaces[adapterIface]; !ok {
			continue
		}

		adapter := bus.Object(bluezService, path)
		if err := adapter.Call(adapterIface+".StartDiscovery", 0).Err; err != nil {
			m.logger.Warn("cannot start discovery", "adapter", string(path), "error", err)
			continue
		}
		defer func() { _ = adapter.Call(adapterIface+".StopDiscovery", 0).Err }()
	}

	devs := make(map[string]Device)
	for path, ifaces := range objs {
		if dev, ok := deviceFromIfaces(path, ifaces); ok && isAudioDevice(dev) {
			devs[dev.Path] = dev
		}
	}

	// Catch new devices until ctx is done.
	sigCh := make(chan *dbus.Signal, 16)
	bus.Signal(sigCh)
	defer bus.RemoveSignal(sigCh)

	match := []dbus.MatchOption{
		dbus.WithMatchInterface(objManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	}
	if err := bus.AddMatchSignal(match...); err != nil {
		return nil, wrap(ctx, err, "add-match", "Cannot subscribe to device signals")
	}
	defer func() { _ = bus.RemoveMatchSignal(match...) }()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case sig := <-sigCh:
			if sig == nil || len(sig.Body) < 2 {
				continue
			}

			path, _ := sig.Body[0].(dbus.ObjectPath)
			ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
			if ifaces == nil {
				continue
			}

			if dev, ok := deviceFromIfaces(path, ifaces); ok && isAudioDevice(dev) {
				m.logger.Debug("found audio device", "address", dev.Address.String(), "name", dev.DisplayName())
				devs[dev.Path] = dev
			}
		}
	}

	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		out = append(out, d)
	}

	return out, nil
}

func (m *mgr) Device(ctx context.Context, addr bluetooth.Address) (Device, error) {
	bus, err := m.acquire(ctx)
	if err != nil {
		return Device{}, err
	}

	objs, err := getManagedObjects(ctx, bus)
	if err != nil {
		return Device{}, err
	}

	for path, ifaces := range objs {
		if dev, ok := deviceFromIfaces(path, ifaces); ok && dev.Address == addr {
			return dev, nil
		}
	}

	return Device{}, fault.Wrap(ErrDeviceNotFound,
		fctx.With(ctx, "address", addr.String()),
		ftag.With(ftag.NotFound),
	)
}

func (m *mgr) Connect(ctx context.Context, dev Device) (int, error) {
	if dev.Path == "" {
		return -1, fault.Wrap(ErrDeviceNotFound,
			fctx.With(ctx, "address", dev.Address.String()),
			ftag.With(ftag.NotFound),
		)
	}

	gp, ok := gatewayProfiles[dev.Class]
	if !ok {
		return -1, fault.Wrap(ErrNoAudioProfile, fctx.With(ctx, "path", dev.Path))
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	bus, prof, err := m.ensureProfile(ctx, dev.Class, gp)
	if err != nil {
		return -1, err
	}
	prof.drain()

	devObj := bus.Object(bluezService, dbus.ObjectPath(dev.Path))
	if !dev.Paired {
		if err := devObj.CallWithContext(ctx, deviceIface+".Pair", 0).Err; err != nil {
			return -1, wrap(ctx, err, "pair", "Cannot pair device", "path", dev.Path)
		}
	}

	if err := devObj.CallWithContext(ctx, deviceIface+".ConnectProfile", 0, gp.remote.String()).Err; err != nil {
		return -1, wrap(ctx, err, "connect-profile", "Cannot connect profile",
			"path", dev.Path, "profile", gp.name)
	}

	for {
		select {
		case <-ctx.Done():
			return -1, wrap(ctx, ctx.Err(), "new-connection", "Profile connection was not handed over",
				"path", dev.Path)

		case c := <-prof.ch:
			if string(c.dev) != dev.Path {
				m.logger.Warn("dropping profile connection for another device", "path", string(c.dev))
				closeFD(c.fd)
				continue
			}

			return c.fd, nil
		}
	}
}

// Close is safe for concurrent and redundant calls.
func (m *mgr) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cleanup := m.cleanup
	m.cleanup = nil
	m.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	return nil
}

func getManagedObjects(ctx context.Context, bus *dbus.Conn) (managedObjects, error) {
	var objs managedObjects

	call := bus.Object(bluezService, dbus.ObjectPath("/")).CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, wrap(ctx, call.Err, "managed-objects", "Cannot list BlueZ objects")
	}
	if err := call.Store(&objs); err != nil {
		return nil, wrap(ctx, err, "managed-objects", "Cannot decode BlueZ objects")
	}

	return objs, nil
}

func closeFD(fd int) {
	_ = os.NewFile(uintptr(fd), "rfcomm").Close()
}

// wrap attaches the failing D-Bus operation to err.
func wrap(ctx context.Context, err error, at, message string, metadata ...string) error {
	return fault.Wrap(err,
		fctx.With(ctx, append([]string{"error_at", at}, metadata...)...),
		ftag.With(ftag.Internal),
		fmsg.With(message),
	)
}
