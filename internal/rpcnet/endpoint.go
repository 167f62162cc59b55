package rpcnet

import "github.com/tamu-distsys-cloud/key-value-store-Sk-Laila-Ayesha-hub/internal/codec"

// ClientEnd is one named outbound channel into a Network. A Clerk or a
// replica holds one ClientEnd per peer it talks to.
type ClientEnd struct {
	endName string
	net     *Network
}

// Name returns the endpoint's registered name.
func (e *ClientEnd) Name() string { return e.endName }

// Call encodes args, submits the RPC to the network's shared queue, and
// blocks for the reply. It returns false for any transport-level failure
// (queue full, drop, disabled endpoint, dead host, codec error) -- callers
// never distinguish these cases, matching the fabric's single (ok, bytes)
// outcome channel.
func (e *ClientEnd) Call(svcMeth string, args any, reply any) bool {
	argBytes, err := codec.Encode(args)
	if err != nil {
		return false
	}

	req := &ReqMsg{
		endName: e.endName,
		svcMeth: svcMeth,
		args:    argBytes,
		replyCh: make(chan ReplyMsg, 1),
	}

	select {
	case e.net.reqCh <- req:
	default:
		return false // queue full: timeout-class failure, no retry here
	}

	var rep ReplyMsg
	select {
	case rep = <-req.replyCh:
	case <-e.net.done:
		return false // network shut down: no reply will come
	}
	if !rep.OK {
		return false
	}
	if reply == nil {
		return true
	}
	return codec.Decode(rep.Reply, reply) == nil
}
