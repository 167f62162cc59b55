// Package rpcnet is the simulated RPC fabric: a registry of named endpoints
// and server hosts, a single shared request queue, and a per-request
// dispatch worker that applies a configurable fault model (drop, delay,
// reorder). It stands in for a real network so that higher layers can be
// tested under deterministic, dial-a-failure-rate conditions.
//
// The fault-injection numbers below (27ms pre-delivery jitter, 100/1000 drop
// rate, 600/900 reorder rate, 200-2200ms reorder delay, 100ms liveness poll)
// come from the MIT 6.5840 labrpc simulator this package is a port of.
package rpcnet

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	requestQueueCapacity = 4096
	livenessPollInterval = 100 * time.Millisecond
	unreliableDropPPT    = 100  // parts per 1000
	unreliableJitterMsMax = 27
	reorderRatePPT       = 600 // parts per 900
	reorderRateDenom     = 900
	reorderBaseDelayMs   = 200
	reorderJitterMsMax   = 2000
	longDelayMsMax       = 7000
	shortDelayMsMax      = 100
)

type endpointState struct {
	serverID int // -1 means "not connected"
	enabled  bool
}

// Network is the shared fabric. One Network instance is normally shared by
// every ClientEnd and Host in a single simulated cluster.
type Network struct {
	mu sync.Mutex

	reliable       bool
	longDelays     bool
	longReordering bool

	ends    map[string]*endpointState
	servers map[int]*Host

	reqCh chan *ReqMsg
	done  chan struct{}
	stop  sync.Once

	totalCount int64
	totalBytes int64
}

// NewNetwork creates a Network in reliable mode and starts its dispatcher.
func NewNetwork() *Network {
	n := &Network{
		reliable: true,
		ends:     make(map[string]*endpointState),
		servers:  make(map[int]*Host),
		reqCh:    make(chan *ReqMsg, requestQueueCapacity),
		done:     make(chan struct{}),
	}
	go n.dispatchLoop()
	return n
}

// MakeEnd registers a new endpoint, initially disabled and unconnected. It
// logs a fatal error if endName is already registered -- callers are
// expected to choose distinct names up front.
func (n *Network) MakeEnd(endName string) *ClientEnd {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.ends[endName]; exists {
		logrus.WithField("endName", endName).Fatal("rpcnet: MakeEnd: endpoint already exists")
	}
	n.ends[endName] = &endpointState{serverID: -1}
	return &ClientEnd{endName: endName, net: n}
}

// Connect points endName at serverID. It does not require the endpoint to
// be enabled or the server to exist yet.
func (n *Network) Connect(endName string, serverID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.ends[endName]; ok {
		e.serverID = serverID
	}
}

// Enable flips the enable bit for endName.
func (n *Network) Enable(endName string, yes bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.ends[endName]; ok {
		e.enabled = yes
	}
}

// AddServer registers host under serverID, replacing whatever was
// previously registered there. Replacing a live host is how this fabric
// models a server restart: in-flight RPCs against the old host observe the
// swap and fail.
func (n *Network) AddServer(serverID int, host *Host) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[serverID] = host
}

// RemoveServer unregisters serverID, modeling a permanent server crash.
func (n *Network) RemoveServer(serverID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, serverID)
}

// Reliable toggles reliable mode. In reliable mode there is no jitter or
// drop; reply reordering is governed separately by LongReordering.
func (n *Network) Reliable(yes bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reliable = yes
}

// LongReordering toggles delayed, reordered reply delivery.
func (n *Network) LongReordering(yes bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.longReordering = yes
}

// LongDelays toggles long delivery delays for disabled/unreachable targets.
func (n *Network) LongDelays(yes bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.longDelays = yes
}

// IsReliable reports the fabric's current reliability mode. KV replicas
// consult it to decide whether to back off between replication retries.
func (n *Network) IsReliable() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reliable
}

// IsServerEnabled reports whether any endpoint currently connected to
// serverID has its enable bit set.
func (n *Network) IsServerEnabled(serverID int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.ends {
		if e.serverID == serverID && e.enabled {
			return true
		}
	}
	return false
}

// Cleanup signals the dispatcher to stop. It is safe to call more than
// once.
func (n *Network) Cleanup() {
	n.stop.Do(func() { close(n.done) })
}

// TotalCount returns the number of requests the dispatcher has accepted.
func (n *Network) TotalCount() int64 { return atomic.LoadInt64(&n.totalCount) }

// TotalBytes returns the total argument-byte volume the dispatcher has
// accepted.
func (n *Network) TotalBytes() int64 { return atomic.LoadInt64(&n.totalBytes) }

// dispatchLoop is the single thread that drains the shared request queue.
// Its only job is to hand each request to its own worker goroutine and go
// back to draining -- it must never block on a request's outcome.
func (n *Network) dispatchLoop() {
	for {
		select {
		case <-n.done:
			return
		case req := <-n.reqCh:
			atomic.AddInt64(&n.totalCount, 1)
			atomic.AddInt64(&n.totalBytes, int64(len(req.args)))
			go n.processReq(req)
		}
	}
}

func (n *Network) readEndpointInfo(endName string) (enabled bool, serverID int, host *Host, reliable, longReordering bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	serverID = -1
	if e, ok := n.ends[endName]; ok {
		enabled = e.enabled
		serverID = e.serverID
	}
	if serverID >= 0 {
		host = n.servers[serverID]
	}
	return enabled, serverID, host, n.reliable, n.longReordering
}

// isServerDead reports whether endName has been disabled or the host
// registered at serverID has changed identity since the RPC started --
// either way, the in-flight RPC should be abandoned.
func (n *Network) isServerDead(endName string, serverID int, host *Host) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.ends[endName]
	if !ok || !e.enabled || e.serverID != serverID {
		return true
	}
	return n.servers[serverID] != host
}

// processReq is the per-request dispatch worker: it applies the fault model
// and eventually writes exactly one ReplyMsg to req.replyCh.
func (n *Network) processReq(req *ReqMsg) {
	enabled, serverID, host, reliable, longReordering := n.readEndpointInfo(req.endName)

	if enabled && serverID >= 0 && host != nil {
		if !reliable {
			time.Sleep(time.Duration(rand.Intn(unreliableJitterMsMax+1)) * time.Millisecond)
		}
		if !reliable && rand.Intn(1000) < unreliableDropPPT {
			req.replyCh <- ReplyMsg{OK: false}
			return
		}

		ech := make(chan ReplyMsg, 1)
		go func() { ech <- host.dispatch(req) }()

		var reply ReplyMsg
		replyReceived := false
		for !replyReceived {
			select {
			case reply = <-ech:
				replyReceived = true
			case <-time.After(livenessPollInterval):
				if n.isServerDead(req.endName, serverID, host) {
					req.replyCh <- ReplyMsg{OK: false}
					return
				}
			}
		}

		switch {
		case !reliable && rand.Intn(1000) < unreliableDropPPT:
			req.replyCh <- ReplyMsg{OK: false}
		case longReordering && rand.Intn(reorderRateDenom) < reorderRatePPT:
			delay := time.Duration(reorderBaseDelayMs+rand.Intn(reorderJitterMsMax+1)) * time.Millisecond
			time.AfterFunc(delay, func() { req.replyCh <- reply })
		default:
			req.replyCh <- reply
		}
		return
	}

	var delayMs int
	if n.longDelaysEnabled() {
		delayMs = rand.Intn(longDelayMsMax + 1)
	} else {
		delayMs = rand.Intn(shortDelayMsMax + 1)
	}
	time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		req.replyCh <- ReplyMsg{OK: false}
	})
}

func (n *Network) longDelaysEnabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.longDelays
}
