package ice_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aethiopicuschan/icelab/ice"
	"github.com/aethiopicuschan/icelab/stun"
	"github.com/stretchr/testify/assert"
)

var loopbackOnly ice.InterfaceSource = func() ([]net.IP, error) {
	return []net.IP{net.IPv4(127, 0, 0, 1)}, nil
}

// startDiscoveryServer runs a real discovery server on loopback.
func startDiscoveryServer(t *testing.T) string {
	t.Helper()

	srv, err := stun.ListenUDP("127.0.0.1:0")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	srv.ReadTimeout = 50 * time.Millisecond
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv.Addr().String()
}

// silentServer accepts datagrams and never answers.
func silentServer(t *testing.T) string {
	t.Helper()
	return (&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: listen(t, false)}).String()
}

func TestGatherer_HostAndReflexive(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := &ice.Gatherer{
		STUNServer: startDiscoveryServer(t),
		Interfaces: loopbackOnly,
		Observer:   rec,
	}

	cands, err := g.Gather(context.Background())
	assert.NoError(t, err)
	if !assert.Len(t, cands, 2) {
		return
	}

	host, srflx := cands[0], cands[1]
	assert.Equal(t, ice.KindHost, host.Kind())
	assert.Equal(t, "1", host.Foundation())
	assert.Equal(t, ice.Priority(ice.KindHost, ice.LocalPreference(0), 1), host.Priority())

	assert.Equal(t, ice.KindServerReflexive, srflx.Kind())
	assert.Equal(t, "100", srflx.Foundation())
	assert.Equal(t, host.LocalPreference(), srflx.LocalPreference())
	// On loopback the server sees the host socket itself.
	assert.Equal(t, host.Addr().String(), srflx.Addr().String())
	assert.Equal(t, host.Addr().String(), srflx.RelatedAddr().String())
	assert.Empty(t, rec.warnings)
}

func TestGatherer_SilentDiscoveryServer(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g := &ice.Gatherer{
		STUNServer:       silentServer(t),
		DiscoveryTimeout: 200 * time.Millisecond,
		Interfaces:       loopbackOnly,
		Observer:         rec,
	}

	start := time.Now()
	cands, err := g.Gather(context.Background())
	assert.NoError(t, err)
	assert.Len(t, cands, 1)
	assert.Equal(t, ice.KindHost, cands[0].Kind())
	assert.Equal(t, 1, rec.count(ice.WarnDiscovery))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestGatherer_Interfaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		source         ice.InterfaceSource
		wantFoundation string
		wantLocalPref  uint16
		wantWarnings   int
	}{
		{
			name: "unbindable interface is skipped",
			source: func() ([]net.IP, error) {
				return []net.IP{net.IPv4(192, 0, 2, 1), net.IPv4(127, 0, 0, 1)}, nil
			},
			wantFoundation: "2",
			wantLocalPref:  ice.LocalPreference(1),
			wantWarnings:   1,
		},
		{
			name: "falls back to loopback",
			source: func() ([]net.IP, error) {
				return []net.IP{net.IPv4(192, 0, 2, 1)}, nil
			},
			wantFoundation: "1",
			wantLocalPref:  ice.LocalPreference(0),
			wantWarnings:   1,
		},
		{
			name:           "no interfaces",
			source:         func() ([]net.IP, error) { return nil, nil },
			wantFoundation: "1",
			wantLocalPref:  ice.LocalPreference(0),
		},
		{
			name:           "listing fails",
			source:         func() ([]net.IP, error) { return nil, errors.New("boom") },
			wantFoundation: "1",
			wantLocalPref:  ice.LocalPreference(0),
			wantWarnings:   1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			g := &ice.Gatherer{Interfaces: tt.source, Observer: rec}
			cands, err := g.Gather(context.Background())
			assert.NoError(t, err)
			if !assert.Len(t, cands, 1) {
				return
			}
			assert.Equal(t, "127.0.0.1", cands[0].IP().String())
			assert.Equal(t, tt.wantFoundation, cands[0].Foundation())
			assert.Equal(t, tt.wantLocalPref, cands[0].LocalPreference())
			assert.Equal(t, tt.wantWarnings, rec.count(ice.WarnInterfaceBind))
		})
	}
}

func TestGatherer_ReleasesSockets(t *testing.T) {
	t.Parallel()

	g := &ice.Gatherer{
		STUNServer: startDiscoveryServer(t),
		Interfaces: loopbackOnly,
	}
	cands, err := g.Gather(context.Background())
	assert.NoError(t, err)

	conn, err := net.ListenUDP("udp", cands[0].Addr())
	assert.NoError(t, err)
	if conn != nil {
		_ = conn.Close()
	}
}

func TestGatherer_Cancelled(t *testing.T) {
	t.Parallel()

	g := &ice.Gatherer{
		STUNServer:       silentServer(t),
		DiscoveryTimeout: 5 * time.Second,
		Interfaces:       loopbackOnly,
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := g.Gather(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSystemInterfaces(t *testing.T) {
	t.Parallel()

	ips, err := ice.SystemInterfaces()
	assert.NoError(t, err)
	for _, ip := range ips {
		assert.NotNil(t, ip.To4())
		assert.False(t, ip.IsLoopback())
	}
}
