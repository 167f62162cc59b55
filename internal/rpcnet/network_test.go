package rpcnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/codec"
)

type echoArgs struct{ Msg string }
type echoReply struct{ Msg string }

func newEchoHost() *Host {
	h := NewHost()
	svc := NewService("Echo")
	svc.Register("Say", func(b []byte) ([]byte, bool) {
		var a echoArgs
		if err := codec.Decode(b, &a); err != nil {
			return nil, false
		}
		out, err := codec.Encode(echoReply{Msg: a.Msg})
		if err != nil {
			return nil, false
		}
		return out, true
	})
	h.AddService(svc)
	return h
}

func TestNetworkDeliversReliableCall(t *testing.T) {
	net := NewNetwork()
	defer net.Cleanup()

	host := newEchoHost()
	net.AddServer(1, host)

	end := net.MakeEnd("c1")
	net.Connect("c1", 1)
	net.Enable("c1", true)

	var reply echoReply
	ok := end.Call("Echo.Say", &echoArgs{Msg: "hello"}, &reply)
	require.True(t, ok)
	require.Equal(t, "hello", reply.Msg)
	require.EqualValues(t, 1, net.TotalCount())
}

func TestNetworkDisabledEndpointFails(t *testing.T) {
	net := NewNetwork()
	defer net.Cleanup()

	host := newEchoHost()
	net.AddServer(1, host)

	end := net.MakeEnd("c1")
	net.Connect("c1", 1)
	// left disabled

	var reply echoReply
	ok := end.Call("Echo.Say", &echoArgs{Msg: "hello"}, &reply)
	require.False(t, ok)
}

func TestIsServerEnabled(t *testing.T) {
	net := NewNetwork()
	defer net.Cleanup()

	net.AddServer(1, newEchoHost())
	net.MakeEnd("c1")
	net.Connect("c1", 1)
	require.False(t, net.IsServerEnabled(1))

	net.Enable("c1", true)
	require.True(t, net.IsServerEnabled(1))
}

func TestHostSwapAbortsInFlightCall(t *testing.T) {
	net := NewNetwork()
	defer net.Cleanup()

	host := NewHost()
	svc := NewService("Slow")
	block := make(chan struct{})
	svc.Register("Wait", func(b []byte) ([]byte, bool) {
		<-block
		return nil, true
	})
	host.AddService(svc)
	net.AddServer(1, host)

	end := net.MakeEnd("c1")
	net.Connect("c1", 1)
	net.Enable("c1", true)

	resultCh := make(chan bool, 1)
	go func() {
		var reply echoReply
		resultCh <- end.Call("Slow.Wait", &echoArgs{}, &reply)
	}()

	time.Sleep(150 * time.Millisecond)
	net.AddServer(1, NewHost()) // swap: models a restart mid-RPC

	select {
	case ok := <-resultCh:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return after host swap")
	}
	close(block)
}
