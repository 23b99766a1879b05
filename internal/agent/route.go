package agent

import (
	"fmt"
	"net"
	"net/netip"
)

// defaultRouteAddress returns the local IPv4 address the kernel would use to
// reach the public internet, by opening a UDP "connection" (no packet is
// actually sent for UDP) to a well-known address and reading the socket's
// local address back. This is the standard Go idiom for default-route
// discovery; no library in the retrieval pack addresses OS route-table
// introspection, so it is implemented directly on net.
func defaultRouteAddress() (netip.Addr, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return netip.Addr{}, fmt.Errorf("agent: probe default route: %w", err)
	}
	defer conn.Close()

	addrPort, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("agent: parse local address: %w", err)
	}
	return addrPort.Addr(), nil
}
