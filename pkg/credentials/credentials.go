// Package credentials parses radio address lists and login credentials.
//
// The input text lists any number of targets, one per line: a single IPv4
// address, a hyphenated range ("10.0.0.10 - 10.0.0.50"), or a CIDR block
// ("192.168.3.0/24", expanded to host addresses only). Lines of the form
// "username = x" / "password = y" change the credentials applied to all
// subsequent targets. Blank lines and '#' comments are ignored; malformed
// lines are logged and skipped.
package credentials

import (
	"net/netip"
	"regexp"
	"sort"
	"strings"

	"github.com/radioscan-network/radioscan/pkg/util"
)

// Default login credentials applied when the input text has no overrides.
const (
	DefaultUsername = "admin"
	DefaultPassword = "admin"
)

var (
	usernameRe = regexp.MustCompile(`(?i)^username\s*=\s*(\S+)`)
	passwordRe = regexp.MustCompile(`(?i)^password\s*=\s*(\S+)`)
)

// Credential holds one radio's address and login. Immutable once parsed.
type Credential struct {
	Addr     netip.Addr
	Username string
	Password string
}

func (c Credential) String() string {
	return c.Username + "@" + c.Addr.String()
}

// List is a sequence of credentials sorted by address.
type List []Credential

// Parse reads target addresses and credential overrides from text.
// The returned list is sorted by address.
func Parse(text string) List {
	username := DefaultUsername
	password := DefaultPassword
	var creds List

	for lineNum, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			// comment or blank

		case usernameRe.MatchString(line):
			username = usernameRe.FindStringSubmatch(line)[1]

		case passwordRe.MatchString(line):
			password = passwordRe.FindStringSubmatch(line)[1]

		case strings.Contains(line, "/"):
			hosts, err := expandCIDR(line)
			if err != nil {
				util.Warnf("skipping line %d: %v", lineNum+1, err)
				continue
			}
			for _, h := range hosts {
				creds = append(creds, Credential{Addr: h, Username: username, Password: password})
			}

		case strings.Contains(line, "-"):
			hosts, err := expandRange(line)
			if err != nil {
				util.Warnf("skipping line %d: %v", lineNum+1, err)
				continue
			}
			for _, h := range hosts {
				creds = append(creds, Credential{Addr: h, Username: username, Password: password})
			}

		default:
			addr, err := netip.ParseAddr(line)
			if err != nil || !addr.Is4() {
				util.Warnf("skipping line %d: invalid IP address: '%s'", lineNum+1, line)
				continue
			}
			creds = append(creds, Credential{Addr: addr, Username: username, Password: password})
		}
	}

	sort.Slice(creds, func(i, j int) bool {
		return creds[i].Addr.Less(creds[j].Addr)
	})
	return creds
}

// expandCIDR expands an IPv4 CIDR block into its host addresses,
// excluding the network and broadcast addresses (a /24 yields 254 hosts;
// /31 and /32 include all addresses).
func expandCIDR(cidr string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return nil, errInvalid("CIDR", cidr)
	}
	if !prefix.Addr().Is4() {
		return nil, errInvalid("CIDR", cidr)
	}

	skipEdges := prefix.Bits() < 31
	addr := prefix.Masked().Addr()
	if skipEdges {
		addr = addr.Next()
	}

	var hosts []netip.Addr
	for prefix.Contains(addr) {
		hosts = append(hosts, addr)
		addr = addr.Next()
	}
	if skipEdges && len(hosts) > 0 {
		hosts = hosts[:len(hosts)-1] // broadcast
	}
	return hosts, nil
}

// expandRange expands "first-last" into all addresses between the two,
// inclusive.
func expandRange(r string) ([]netip.Addr, error) {
	parts := strings.SplitN(r, "-", 2)
	if len(parts) != 2 {
		return nil, errInvalid("range", r)
	}
	first, err1 := netip.ParseAddr(strings.TrimSpace(parts[0]))
	last, err2 := netip.ParseAddr(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || !first.Is4() || !last.Is4() {
		return nil, errInvalid("range", r)
	}
	if last.Less(first) {
		return nil, errInvalid("range", r)
	}

	var hosts []netip.Addr
	for a := first; !last.Less(a); a = a.Next() {
		hosts = append(hosts, a)
	}
	return hosts, nil
}

type parseError struct {
	kind string
	line string
}

func (e parseError) Error() string {
	return "invalid " + e.kind + ": '" + e.line + "'"
}

func errInvalid(kind, line string) error {
	return parseError{kind: kind, line: strings.TrimSpace(line)}
}

// Batches splits the list into consecutive slices of at most size
// credentials; the last batch may be shorter. A non-positive size yields a
// single batch. An empty list yields no batches.
func (l List) Batches(size int) []List {
	if len(l) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(l)
	}
	batches := make([]List, 0, (len(l)+size-1)/size)
	for start := 0; start < len(l); start += size {
		end := start + size
		if end > len(l) {
			end = len(l)
		}
		batches = append(batches, l[start:end])
	}
	return batches
}
