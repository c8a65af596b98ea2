package oscquery

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/mdns"
)

// Service types announced over mDNS.
const (
	ServiceOSCQuery = "_oscjson._tcp"
	ServiceOSC      = "_osc._udp"
)

// Advertiser announces the OSCQuery HTTP endpoint and the OSC UDP endpoint
// over mDNS until Shutdown. Without an HTTP endpoint only the OSC service
// is announced.
type Advertiser struct {
	servers []*mdns.Server
	logger  *slog.Logger
}

type service struct {
	service string
	port    int
}

// services lists what to announce. An httpPort of 0 means no OSCQuery
// endpoint is being served.
func services(httpPort, oscPort int) []service {
	var out []service
	if httpPort > 0 {
		out = append(out, service{ServiceOSCQuery, httpPort})
	}
	return append(out, service{ServiceOSC, oscPort})
}

// Advertise starts one mDNS responder per service type. Pass httpPort 0
// when the HTTP server is disabled.
func Advertise(name string, httpPort, oscPort int, logger *slog.Logger) (*Advertiser, error) {
	a := &Advertiser{logger: logger}

	for _, svc := range services(httpPort, oscPort) {
		zone, err := mdns.NewMDNSService(name, svc.service, "", "", svc.port, nil, []string{"txtvers=1"})
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("mdns service %s: %w", svc.service, err)
		}
		server, err := mdns.NewServer(&mdns.Config{Zone: zone})
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("mdns server %s: %w", svc.service, err)
		}
		a.servers = append(a.servers, server)
		logger.Info("mdns advertising", "instance", name, "service", svc.service, "port", svc.port)
	}
	return a, nil
}

// Shutdown stops every responder.
func (a *Advertiser) Shutdown() {
	for _, s := range a.servers {
		if err := s.Shutdown(); err != nil {
			a.logger.Warn("mdns shutdown", "error", err)
		}
	}
	a.servers = nil
}
