// Package validation provides validation for firewall rule parameters.
// All checks operate on the fully-merged candidate state so that create and
// update paths share one code path.
package validation

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/wkite/neutron-fwaas/internal/domain"
)

// ParsePortRange parses the API "min:max" port range form. A bare number is
// treated as a single-port range. An empty string yields (0, 0): no range.
func ParsePortRange(portRange string) (int, int, error) {
	if portRange == "" {
		return 0, 0, nil
	}
	minStr, maxStr, found := strings.Cut(portRange, ":")
	if !found {
		maxStr = minStr
	}
	minPort, err := parsePortNumber(minStr)
	if err != nil {
		return 0, 0, err
	}
	maxPort, err := parsePortNumber(maxStr)
	if err != nil {
		return 0, 0, err
	}
	if minPort > maxPort {
		return 0, 0, fmt.Errorf("%w: invalid port range %s:%s", domain.ErrInvalidInput, minStr, maxStr)
	}
	return minPort, maxPort, nil
}

// FormatPortRange renders a stored min/max pair in the API form, collapsing
// single-port ranges to a bare number. A zero min means no range.
func FormatPortRange(minPort, maxPort int) string {
	if minPort == 0 {
		return ""
	}
	if minPort == maxPort {
		return strconv.Itoa(minPort)
	}
	return fmt.Sprintf("%d:%d", minPort, maxPort)
}

func parsePortNumber(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port number %q", domain.ErrInvalidInput, s)
	}
	return port, nil
}

// ValidateRule checks a fully-merged rule candidate. It must be called with
// the effective rule (patch overlaid on stored state), never a partial patch.
func ValidateRule(r *domain.Rule) error {
	if !domain.ValidAction(r.Action) {
		return fmt.Errorf("%w: invalid action %q", domain.ErrInvalidInput, r.Action)
	}
	if r.IPVersion != 4 && r.IPVersion != 6 {
		return fmt.Errorf("%w: ip_version must be 4 or 6", domain.ErrInvalidInput)
	}
	if err := validateProtocol(r.Protocol); err != nil {
		return err
	}
	hasPorts := r.SourcePortRangeMin != 0 || r.DestinationPortRangeMin != 0
	if hasPorts && !domain.PortCarryingProtocol(r.Protocol) {
		return fmt.Errorf("%w: source/destination port requires a tcp or udp protocol", domain.ErrInvalidInput)
	}
	if err := validateAddressVersion("source_ip_address", r.SourceIPAddress, r.IPVersion); err != nil {
		return err
	}
	if err := validateAddressVersion("destination_ip_address", r.DestinationIPAddress, r.IPVersion); err != nil {
		return err
	}
	return nil
}

// validateProtocol accepts the known protocol names, a numeric protocol
// (0-255), or empty for "any".
func validateProtocol(protocol string) error {
	switch protocol {
	case "", domain.ProtocolTCP, domain.ProtocolUDP, domain.ProtocolICMP, domain.ProtocolICMPv6:
		return nil
	}
	if num, err := strconv.Atoi(protocol); err == nil && num >= 0 && num <= 255 {
		return nil
	}
	return fmt.Errorf("%w: invalid protocol %q", domain.ErrInvalidInput, protocol)
}

func validateAddressVersion(field, addr string, ipVersion int) error {
	if addr == "" {
		return nil
	}
	version, err := AddressVersion(addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %q is not a valid IP address or CIDR", domain.ErrInvalidInput, field, addr)
	}
	if version != ipVersion {
		return fmt.Errorf("%w: %s %q does not match ip_version %d", domain.ErrInvalidInput, field, addr, ipVersion)
	}
	return nil
}

// AddressVersion returns 4 or 6 for an IP address or CIDR literal.
func AddressVersion(addr string) (int, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		parsed, _, err := net.ParseCIDR(addr)
		if err != nil {
			return 0, err
		}
		ip = parsed
	}
	if ip.To4() != nil {
		return 4, nil
	}
	return 6, nil
}
