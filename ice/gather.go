package ice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aethiopicuschan/icelab/stun"
)

// InterfaceSource lists the local addresses host candidates are gathered on,
// in preference order.
type InterfaceSource func() ([]net.IP, error)

// SystemInterfaces returns the IPv4 addresses of every interface that is up
// and not a loopback.
func SystemInterfaces() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil && !v4.IsLoopback() {
				ips = append(ips, v4)
			}
		}
	}
	return ips, nil
}

// Gatherer collects host and server reflexive candidates.
type Gatherer struct {
	// STUNServer is the discovery server ("host:port"). Empty skips
	// reflexive discovery.
	STUNServer string

	// DiscoveryTimeout bounds the single discovery transaction.
	// Defaults to stun.DiscoveryTimeout.
	DiscoveryTimeout time.Duration

	// Interfaces defaults to SystemInterfaces.
	Interfaces InterfaceSource

	Observer Observer
}

type hostSocket struct {
	conn  *net.UDPConn
	cand  Candidate
	index int
}

// Gather binds one socket per interface address, records each as a host
// candidate, then asks the discovery server for the first host socket's
// reflexive address. Failing interfaces and a failing discovery are
// reported to the observer and skipped. All sockets are closed on return.
func (g *Gatherer) Gather(ctx context.Context) ([]Candidate, error) {
	obs := observerOrNop(g.Observer)

	source := g.Interfaces
	if source == nil {
		source = SystemInterfaces
	}
	ips, err := source()
	if err != nil {
		obs.Warn(WarnInterfaceBind, fmt.Errorf("list interfaces: %w", err))
	}

	var hosts []hostSocket
	defer func() {
		for _, h := range hosts {
			_ = h.conn.Close()
		}
	}()

	var lastErr error
	for i, ip := range ips {
		h, err := bindHost(i, ip)
		if err != nil {
			lastErr = err
			obs.Warn(WarnInterfaceBind, err)
			continue
		}
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		h, err := bindHost(0, net.IPv4(127, 0, 0, 1))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGatheringFailed, errors.Join(lastErr, err))
		}
		hosts = append(hosts, h)
	}

	cands := make([]Candidate, 0, len(hosts)+1)
	for _, h := range hosts {
		cands = append(cands, h.cand)
		obs.CandidateGathered(h.cand)
	}

	if g.STUNServer != "" {
		srflx, err := g.discover(ctx, hosts[0])
		switch {
		case err == nil:
			cands = append(cands, srflx)
			obs.CandidateGathered(srflx)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			obs.Warn(WarnDiscovery, err)
		}
	}

	SortCandidates(cands)
	return cands, nil
}

func bindHost(index int, ip net.IP) (hostSocket, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip})
	if err != nil {
		return hostSocket{}, fmt.Errorf("bind %s: %w", ip, err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	cand, err := NewHostCandidate(strconv.Itoa(index+1), ip, port, LocalPreference(index))
	if err != nil {
		_ = conn.Close()
		return hostSocket{}, err
	}
	return hostSocket{conn: conn, cand: cand, index: index}, nil
}

func (g *Gatherer) discover(ctx context.Context, base hostSocket) (Candidate, error) {
	server, err := net.ResolveUDPAddr("udp", g.STUNServer)
	if err != nil {
		return Candidate{}, fmt.Errorf("resolve %s: %w", g.STUNServer, err)
	}

	client := stun.NewDiscoveryClient()
	if g.DiscoveryTimeout > 0 {
		client.Timeout = g.DiscoveryTimeout
		client.RTO = g.DiscoveryTimeout
	}

	mapped, err := client.BindingRequestFrom(ctx, base.conn, server)
	if err != nil {
		return Candidate{}, fmt.Errorf("discover via %s: %w", server, err)
	}
	return NewServerReflexiveCandidate(strconv.Itoa(100+base.index), base.cand, mapped.IP, mapped.Port)
}
