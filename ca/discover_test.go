package ca

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastOf(t *testing.T) {
	ip := net.IPv4(192, 168, 1, 17).To4()

	t.Run("Slash24", func(t *testing.T) {
		got := broadcastOf(ip, net.CIDRMask(24, 32))
		assert.Equal(t, netip.AddrFrom4([4]byte{192, 168, 1, 255}), got)
	})

	t.Run("Slash16", func(t *testing.T) {
		got := broadcastOf(ip, net.CIDRMask(16, 32))
		assert.Equal(t, netip.AddrFrom4([4]byte{192, 168, 255, 255}), got)
	})

	t.Run("Slash32", func(t *testing.T) {
		got := broadcastOf(ip, net.CIDRMask(32, 32))
		assert.Equal(t, netip.AddrFrom4([4]byte{192, 168, 1, 17}), got)
	})

	t.Run("SixteenByteMask", func(t *testing.T) {
		mask := net.IPMask(append(make([]byte, 12), 255, 255, 255, 0))
		got := broadcastOf(ip, mask)
		assert.Equal(t, netip.AddrFrom4([4]byte{192, 168, 1, 255}), got)
	})
}

func TestLocalAddr(t *testing.T) {
	a := LocalAddr()
	require.True(t, a.IsValid())
	assert.True(t, a.Is4())
	assert.Equal(t, a, LocalAddr(), "the identity is stable")
}

func TestBroadcastDestinations(t *testing.T) {
	t.Run("Unrestricted", func(t *testing.T) {
		dests, err := BroadcastDestinations(netip.Addr{})
		require.NoError(t, err)
		for _, d := range dests {
			assert.True(t, d.Is4())
			assert.False(t, d.IsLoopback(), "loopback never broadcasts")
		}
	})

	t.Run("LoopbackMatch", func(t *testing.T) {
		dests, err := BroadcastDestinations(netip.AddrFrom4([4]byte{127, 0, 0, 1}))
		require.NoError(t, err)
		for _, d := range dests {
			assert.True(t, d.IsLoopback())
		}
	})
}
