package rpcnet

// ReqMsg is one outbound RPC sitting in the Network's shared queue, waiting
// for a dispatch worker to pick it up.
type ReqMsg struct {
	endName string
	svcMeth string
	args    []byte
	replyCh chan ReplyMsg
}

// ReplyMsg is what a dispatch worker hands back to the caller. OK false
// means the RPC failed at the transport level; the caller never inspects
// Reply in that case.
type ReplyMsg struct {
	OK    bool
	Reply []byte
}
