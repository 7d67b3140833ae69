package util

import "testing"

func TestConfigHashLineEndingInvariance(t *testing.T) {
	lf := "hostname sw1\ninterface Gi0/1\n"
	crlf := "hostname sw1\r\ninterface Gi0/1\r\n"
	cr := "hostname sw1\rinterface Gi0/1\r"

	h := ConfigHash(lf)
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h))
	}
	if ConfigHash(crlf) != h {
		t.Error("CRLF config hashed differently from LF")
	}
	if ConfigHash(cr) != h {
		t.Error("bare-CR config hashed differently from LF")
	}
	if ConfigHash(lf+"!\n") == h {
		t.Error("different content produced the same hash")
	}
}

func TestSameSubnet(t *testing.T) {
	tests := []struct {
		name   string
		addr   string
		mask   string
		target string
		want   bool
	}{
		{"inside /24", "10.0.10.1", "255.255.255.0", "10.0.10.254", true},
		{"outside /24", "10.0.10.1", "255.255.255.0", "10.0.11.1", false},
		{"inside /30", "192.168.1.1", "255.255.255.252", "192.168.1.2", true},
		{"outside /30", "192.168.1.1", "255.255.255.252", "192.168.1.5", false},
		{"bad mask", "10.0.0.1", "255.0.255.0", "10.0.0.2", false},
		{"bad target", "10.0.0.1", "255.255.255.0", "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameSubnet(tt.addr, tt.mask, tt.target); got != tt.want {
				t.Errorf("SameSubnet(%s, %s, %s) = %v, want %v", tt.addr, tt.mask, tt.target, got, tt.want)
			}
		})
	}
}
