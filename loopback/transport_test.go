package loopback_test

import (
	"context"
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/config"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"github.com/bluetuith-org/serial-link/link"
	"github.com/bluetuith-org/serial-link/loopback"
)

type chunks struct {
	mu   sync.Mutex
	data []string
}

func (c *chunks) OnChunk(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = append(c.data, text)
}

func (c *chunks) OnStopped(error) {}

func (c *chunks) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s string
	for _, d := range c.data {
		s += d
	}

	return s
}

func newPair() (*loopback.Transport, *loopback.Transport) {
	network := loopback.NewNetwork()

	robot := network.NewTransport("00:11:22:33:44:55", "RobotY")
	phone := network.NewTransport("66:77:88:99:AA:BB", "Phone")
	phone.Pair(robot)
	phone.AddPeer(bluetooth.PeerData{Name: "RobotX", Address: "00:00:00:00:00:01"})

	return robot, phone
}

func TestClientServerExchange(t *testing.T) {
	g := NewWithT(t)
	robot, phone := newPair()

	server, err := link.New(robot, config.New())
	g.Expect(err).NotTo(HaveOccurred())
	defer server.Release()

	client, err := link.New(phone, config.New())
	g.Expect(err).NotTo(HaveOccurred())
	defer client.Release()

	received := &chunks{}
	g.Expect(server.CreateServer(received)).To(Succeed())

	g.Expect(client.ConnectToPeer(context.Background(), "RobotY")).To(Succeed())
	g.Eventually(server.State).Should(Equal(bluetooth.LinkServerReading))

	for _, cmd := range []string{"r", "a", "g", "d", "s"} {
		g.Expect(client.SendString(cmd)).To(Succeed())
	}

	g.Eventually(received.joined).Should(Equal("ragds"))
	g.Expect(phone.DialCount()).To(BeEquivalentTo(1))

	g.Expect(client.Close()).To(Succeed())
	g.Expect(server.Close()).To(Succeed())
}

func TestDialUnreachablePeer(t *testing.T) {
	g := NewWithT(t)
	_, phone := newPair()

	client, err := link.New(phone, config.New())
	g.Expect(err).NotTo(HaveOccurred())
	defer client.Release()

	err = client.ConnectToPeer(context.Background(), "RobotX")
	g.Expect(err).To(MatchError(errorkinds.ErrConnectFailed))
	g.Expect(err).To(MatchError(loopback.ErrUnreachable))
}

func TestRemovePeer(t *testing.T) {
	g := NewWithT(t)
	_, phone := newPair()

	g.Expect(phone.PairedPeers()).To(HaveLen(2))

	phone.RemovePeer("00:11:22:33:44:55")
	peers, err := phone.PairedPeers()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(peers).To(ConsistOf(bluetooth.PeerData{Name: "RobotX", Address: "00:00:00:00:00:01"}))

	client, err := link.New(phone, config.New())
	g.Expect(err).NotTo(HaveOccurred())
	defer client.Release()

	_, err = client.SelectPeer("RobotY")
	g.Expect(err).To(MatchError(errorkinds.ErrNoPeerFound))
}

func TestListenerAcceptsOnce(t *testing.T) {
	g := NewWithT(t)
	robot, phone := newPair()

	ln, err := robot.Listen("Serial Link", bluetooth.SerialPortProfile)
	g.Expect(err).NotTo(HaveOccurred())
	defer ln.Close()

	_, err = robot.Listen("Serial Link", bluetooth.SerialPortProfile)
	g.Expect(err).To(MatchError(loopback.ErrAddressInUse))

	peers, err := phone.PairedPeers()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(peers).To(HaveLen(2))

	target := bluetooth.PeerData{Address: "00:11:22:33:44:55"}

	first, err := phone.Dial(context.Background(), target, bluetooth.SerialPortProfile)
	g.Expect(err).NotTo(HaveOccurred())
	defer first.Close()

	_, err = phone.Dial(context.Background(), target, bluetooth.SerialPortProfile)
	g.Expect(err).To(MatchError(loopback.ErrRejected))

	accepted, err := ln.Accept()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(accepted.RemoteAddress()).To(Equal(bluetooth.MacAddress("66:77:88:99:AA:BB")))
	defer accepted.Close()
}

func TestListenerCloseUnblocksAccept(t *testing.T) {
	g := NewWithT(t)
	robot, _ := newPair()

	ln, err := robot.Listen("Serial Link", bluetooth.SerialPortProfile)
	g.Expect(err).NotTo(HaveOccurred())

	accepted := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		accepted <- err
	}()

	g.Expect(ln.Close()).To(Succeed())
	g.Eventually(accepted).Should(Receive(MatchError(errorkinds.ErrListenerClosed)))

	// The profile can be bound again.
	ln, err = robot.Listen("Serial Link", bluetooth.SerialPortProfile)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ln.Close()).To(Succeed())
}

func TestAdapterState(t *testing.T) {
	g := NewWithT(t)
	robot, _ := newPair()

	adapter, present, err := robot.Adapter()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(present).To(BeTrue())
	g.Expect(adapter.Powered).To(BeTrue())

	robot.SetPowered(false)
	_, err = robot.PairedPeers()
	g.Expect(err).To(MatchError(errorkinds.ErrAdapterDisabled))

	robot.SetPresent(false)
	_, present, _ = robot.Adapter()
	g.Expect(present).To(BeFalse())

	_, err = robot.Listen("Serial Link", bluetooth.SerialPortProfile)
	g.Expect(err).To(MatchError(errorkinds.ErrNoAdapter))
}
