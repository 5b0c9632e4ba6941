//go:build linux

package linux

import (
	"syscall"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
	dbus "github.com/godbus/dbus/v5"
)

func testObjects() managedObjects {
	return managedObjects{
		"/org/bluez/hci1": {
			adapterIface: {
				"Address": dbus.MakeVariant("11:11:11:11:11:11"),
				"Powered": dbus.MakeVariant(false),
			},
		},
		"/org/bluez/hci0": {
			adapterIface: {
				"Address": dbus.MakeVariant("AA:BB:CC:DD:EE:FF"),
				"Name":    dbus.MakeVariant("host"),
				"Powered": dbus.MakeVariant(true),
			},
		},
		"/org/bluez/hci0/dev_00_11_22_33_44_55": {
			deviceIface: {
				"Name":    dbus.MakeVariant("RobotY"),
				"Paired":  dbus.MakeVariant(true),
				"Adapter": dbus.MakeVariant(dbus.ObjectPath("/org/bluez/hci0")),
			},
		},
		"/org/bluez/hci0/dev_66_77_88_99_AA_BB": {
			deviceIface: {
				"Alias":   dbus.MakeVariant("Makeblock"),
				"Address": dbus.MakeVariant("66:77:88:99:AA:BB"),
				"Paired":  dbus.MakeVariant(true),
			},
		},
		"/org/bluez/hci0/dev_01_01_01_01_01_01": {
			deviceIface: {
				"Name":   dbus.MakeVariant("Stranger"),
				"Paired": dbus.MakeVariant(false),
			},
		},
		"/org/bluez/hci1/dev_02_02_02_02_02_02": {
			deviceIface: {
				"Name":    dbus.MakeVariant("OtherAdapter"),
				"Paired":  dbus.MakeVariant(true),
				"Adapter": dbus.MakeVariant(dbus.ObjectPath("/org/bluez/hci1")),
			},
		},
	}
}

func TestFirstAdapter(t *testing.T) {
	g := NewWithT(t)

	path, adapter, ok := firstAdapter(testObjects())
	g.Expect(ok).To(BeTrue())
	g.Expect(path).To(Equal(dbus.ObjectPath("/org/bluez/hci0")))
	g.Expect(adapter).To(Equal(bluetooth.AdapterData{
		Address: "AA:BB:CC:DD:EE:FF",
		Name:    "host",
		Powered: true,
	}))

	_, _, ok = firstAdapter(managedObjects{})
	g.Expect(ok).To(BeFalse())
}

func TestPairedPeers(t *testing.T) {
	g := NewWithT(t)

	peers := pairedPeers(testObjects(), "/org/bluez/hci0")
	g.Expect(peers).To(ConsistOf(
		bluetooth.PeerData{
			Name:    "RobotY",
			Address: "00:11:22:33:44:55",
			Path:    "/org/bluez/hci0/dev_00_11_22_33_44_55",
		},
		bluetooth.PeerData{
			Name:    "Makeblock",
			Address: "66:77:88:99:AA:BB",
			Path:    "/org/bluez/hci0/dev_66_77_88_99_AA_BB",
		},
	))
}

func TestMacFromPath(t *testing.T) {
	g := NewWithT(t)

	g.Expect(macFromPath("/org/bluez/hci0/dev_00_11_22_33_44_55")).To(Equal(bluetooth.MacAddress("00:11:22:33:44:55")))
	g.Expect(macFromPath("/org/bluez/hci0")).To(BeEmpty())
}

func TestProfileDeliversOneConnection(t *testing.T) {
	g := NewWithT(t)
	p := newProfile()

	g.Expect(p.NewConnection("/org/bluez/hci0/dev_00_11_22_33_44_55", dbus.UnixFD(-1), nil)).To(BeNil())

	dbusErr := p.NewConnection("/org/bluez/hci0/dev_66_77_88_99_AA_BB", dbus.UnixFD(-1), nil)
	g.Expect(dbusErr).NotTo(BeNil())
	g.Expect(dbusErr.Name).To(Equal("org.bluez.Error.Rejected"))

	var c profileConn
	g.Expect(p.conns).To(Receive(&c))
	g.Expect(c.remote).To(Equal(bluetooth.MacAddress("00:11:22:33:44:55")))
}

func TestProfileConnectionCloseUnblocksRead(t *testing.T) {
	g := NewWithT(t)

	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	g.Expect(err).NotTo(HaveOccurred())
	defer syscall.Close(fds[1])

	p := newProfile()
	g.Expect(p.NewConnection("/org/bluez/hci0/dev_00_11_22_33_44_55", dbus.UnixFD(fds[0]), nil)).To(BeNil())

	var c profileConn
	g.Expect(p.conns).To(Receive(&c))

	readErr := make(chan error, 1)
	go func() {
		_, err := c.file.Read(make([]byte, 8))
		readErr <- err
	}()

	g.Consistently(readErr, 50*time.Millisecond).ShouldNot(Receive())
	g.Expect(c.file.Close()).To(Succeed())
	g.Eventually(readErr).Should(Receive(HaveOccurred()))
}

func TestTransportCloseWithoutBus(t *testing.T) {
	g := NewWithT(t)
	b := NewTransport()

	g.Expect(b.Close()).To(Succeed())
	g.Expect(b.Close()).To(Succeed())
}
