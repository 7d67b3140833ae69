package util

import (
	"fmt"
	"net"
)

// ParseIPMask parses a dotted-quad address and netmask pair as they appear
// in IOS interface stanzas ("ip address 10.1.1.1 255.255.255.0").
func ParseIPMask(addr, mask string) (net.IP, net.IPMask, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, nil, fmt.Errorf("invalid ip address: %s", addr)
	}
	maskIP := net.ParseIP(mask)
	if maskIP == nil {
		return nil, nil, fmt.Errorf("invalid netmask: %s", mask)
	}
	m4 := maskIP.To4()
	if m4 == nil {
		return nil, nil, fmt.Errorf("invalid netmask: %s", mask)
	}
	ipMask := net.IPMask(m4)
	if ones, bits := ipMask.Size(); ones == 0 && bits == 0 {
		return nil, nil, fmt.Errorf("non-contiguous netmask: %s", mask)
	}
	return ip, ipMask, nil
}

// SameSubnet reports whether target falls inside the subnet defined by
// addr/mask. Used to resolve static-route next hops against local interfaces.
func SameSubnet(addr, mask, target string) bool {
	ip, ipMask, err := ParseIPMask(addr, mask)
	if err != nil {
		return false
	}
	t := net.ParseIP(target)
	if t == nil {
		return false
	}
	network := net.IPNet{IP: ip.Mask(ipMask), Mask: ipMask}
	return network.Contains(t)
}

// ValidIPv4 reports whether s is a well-formed dotted-quad IPv4 address.
func ValidIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
