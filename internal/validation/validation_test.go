package validation

import (
	"errors"
	"testing"

	"github.com/wkite/neutron-fwaas/internal/domain"
)

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMin int
		wantMax int
		wantErr bool
	}{
		{"empty", "", 0, 0, false},
		{"single port", "80", 80, 80, false},
		{"range", "8000:8080", 8000, 8080, false},
		{"equal range", "443:443", 443, 443, false},
		{"full range", "1:65535", 1, 65535, false},
		{"inverted", "8080:8000", 0, 0, true},
		{"zero", "0", 0, 0, true},
		{"too large", "65536", 0, 0, true},
		{"garbage", "http", 0, 0, true},
		{"half garbage", "80:http", 0, 0, true},
		{"negative", "-1", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax, err := ParsePortRange(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePortRange(%q) expected error, got %d:%d", tt.input, gotMin, gotMax)
				}
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("ParsePortRange(%q) error = %v, want ErrInvalidInput", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePortRange(%q) unexpected error: %v", tt.input, err)
			}
			if gotMin != tt.wantMin || gotMax != tt.wantMax {
				t.Errorf("ParsePortRange(%q) = %d:%d, want %d:%d", tt.input, gotMin, gotMax, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestFormatPortRange(t *testing.T) {
	tests := []struct {
		min  int
		max  int
		want string
	}{
		{0, 0, ""},
		{80, 80, "80"},
		{8000, 8080, "8000:8080"},
	}

	for _, tt := range tests {
		if got := FormatPortRange(tt.min, tt.max); got != tt.want {
			t.Errorf("FormatPortRange(%d, %d) = %q, want %q", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, input := range []string{"", "22", "1024:2048"} {
		minPort, maxPort, err := ParsePortRange(input)
		if err != nil {
			t.Fatalf("ParsePortRange(%q) unexpected error: %v", input, err)
		}
		if got := FormatPortRange(minPort, maxPort); got != input {
			t.Errorf("round trip of %q = %q", input, got)
		}
	}
}

func TestValidateRule(t *testing.T) {
	base := func() *domain.Rule {
		return &domain.Rule{
			Action:    domain.ActionAllow,
			IPVersion: 4,
			Protocol:  domain.ProtocolTCP,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.Rule)
		wantErr bool
	}{
		{"valid tcp", func(r *domain.Rule) {}, false},
		{"valid any protocol", func(r *domain.Rule) { r.Protocol = "" }, false},
		{"valid numeric protocol", func(r *domain.Rule) { r.Protocol = "47" }, false},
		{"valid icmp", func(r *domain.Rule) { r.Protocol = domain.ProtocolICMP }, false},
		{"valid v6", func(r *domain.Rule) {
			r.IPVersion = 6
			r.SourceIPAddress = "2001:db8::/64"
		}, false},
		{"valid ports on tcp", func(r *domain.Rule) {
			r.DestinationPortRangeMin = 80
			r.DestinationPortRangeMax = 80
		}, false},
		{"bad action", func(r *domain.Rule) { r.Action = "drop" }, true},
		{"bad ip version", func(r *domain.Rule) { r.IPVersion = 5 }, true},
		{"bad protocol name", func(r *domain.Rule) { r.Protocol = "gre" }, true},
		{"bad protocol number", func(r *domain.Rule) { r.Protocol = "256" }, true},
		{"ports without protocol", func(r *domain.Rule) {
			r.Protocol = ""
			r.SourcePortRangeMin = 22
			r.SourcePortRangeMax = 22
		}, true},
		{"ports on icmp", func(r *domain.Rule) {
			r.Protocol = domain.ProtocolICMP
			r.DestinationPortRangeMin = 8
			r.DestinationPortRangeMax = 8
		}, true},
		{"address version mismatch", func(r *domain.Rule) {
			r.SourceIPAddress = "2001:db8::1"
		}, true},
		{"destination version mismatch", func(r *domain.Rule) {
			r.IPVersion = 6
			r.DestinationIPAddress = "10.0.0.0/8"
		}, true},
		{"malformed address", func(r *domain.Rule) {
			r.SourceIPAddress = "not-an-address"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := base()
			tt.mutate(rule)
			err := ValidateRule(rule)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("ValidateRule() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateRule() unexpected error: %v", err)
			}
		})
	}
}

func TestAddressVersion(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{"192.0.2.1", 4, false},
		{"10.0.0.0/8", 4, false},
		{"2001:db8::1", 6, false},
		{"2001:db8::/32", 6, false},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		got, err := AddressVersion(tt.addr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("AddressVersion(%q) expected error", tt.addr)
			}
			continue
		}
		if err != nil {
			t.Errorf("AddressVersion(%q) unexpected error: %v", tt.addr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AddressVersion(%q) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}
