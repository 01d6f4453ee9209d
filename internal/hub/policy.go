package hub

import "strings"

// Policy decides what Broadcast does when a client queue is full.
type Policy uint8

const (
	// PolicyDrop discards the frame for that client only.
	PolicyDrop Policy = iota
	// PolicyKick closes the client so its session disconnects.
	PolicyKick
)

var policyNames = [...]string{PolicyDrop: "drop", PolicyKick: "kick"}

// ParsePolicy maps "drop" and "kick" (any case) to a policy. Unknown names
// yield PolicyDrop and false.
func ParsePolicy(s string) (Policy, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range policyNames {
		if s == name {
			return Policy(p), true
		}
	}
	return PolicyDrop, false
}

func (p Policy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return "drop"
}
