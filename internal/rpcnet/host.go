package rpcnet

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Host is a server-side RPC endpoint: a registry of named services plus a
// call counter. One Host is registered per logical server id in a Network;
// replacing the Host registered for an id models a process restart.
type Host struct {
	mu       sync.Mutex
	services map[string]*Service
	count    int64
}

// NewHost creates an empty host with no registered services.
func NewHost() *Host {
	return &Host{services: make(map[string]*Service)}
}

// AddService registers svc under its own name, replacing any prior service
// of the same name.
func (h *Host) AddService(svc *Service) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[svc.Name()] = svc
}

// Count returns the number of requests dispatched to this host so far.
func (h *Host) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// dispatch routes req by its "Service.Method" tag. An unknown service name
// is a fatal configuration error -- it means a Clerk or peer addressed a
// service that was never registered on this host, which cannot happen in a
// correctly wired cluster.
func (h *Host) dispatch(req *ReqMsg) ReplyMsg {
	service, method, ok := splitSvcMeth(req.svcMeth)
	if !ok {
		logrus.WithField("svcMeth", req.svcMeth).Fatal("rpcnet: malformed service.method tag")
	}

	h.mu.Lock()
	h.count++
	svc, known := h.services[service]
	h.mu.Unlock()

	if !known {
		logrus.WithFields(logrus.Fields{
			"service": service,
			"svcMeth": req.svcMeth,
		}).Fatal("rpcnet: unknown service")
	}

	replyBytes, ok, knownMethod := svc.dispatch(method, req.args)
	if !knownMethod {
		logrus.WithFields(logrus.Fields{
			"service": service,
			"method":  method,
		}).Fatal("rpcnet: unknown method")
	}
	return ReplyMsg{OK: ok, Reply: replyBytes}
}
