package graph

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-sta/pkg/corner"
)

// Role is the timing role of an edge.
type Role int8

const (
	RoleWire Role = iota
	RoleCombinational
	// RoleRegClkToQ launches data from a register clock pin.
	RoleRegClkToQ
	// RoleLatchEnToQ launches data from a latch enable pin.
	RoleLatchEnToQ
	// RoleLatchDtoQ passes data through a transparent latch.
	RoleLatchDtoQ
	RoleSetup
	RoleHold
	RoleRecovery
	RoleRemoval
	// RoleLatchSetup is the setup check of a latch against its closing edge.
	RoleLatchSetup
)

var roleNames = [...]string{
	RoleWire:          "wire",
	RoleCombinational: "combinational",
	RoleRegClkToQ:     "reg_clk_to_q",
	RoleLatchEnToQ:    "latch_en_to_q",
	RoleLatchDtoQ:     "latch_d_to_q",
	RoleSetup:         "setup",
	RoleHold:          "hold",
	RoleRecovery:      "recovery",
	RoleRemoval:       "removal",
	RoleLatchSetup:    "latch_setup",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", r)
}

// ParseRole parses the String form of a role.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(s)
	for r, name := range roleNames {
		if name == s {
			return Role(r), nil
		}
	}
	return RoleWire, fmt.Errorf("invalid edge role %q", s)
}

// IsTimingCheck reports if the edge is a check rather than a delay.
func (r Role) IsTimingCheck() bool {
	switch r {
	case RoleSetup, RoleHold, RoleRecovery, RoleRemoval, RoleLatchSetup:
		return true
	}
	return false
}

// IsAsync reports if the check constrains an asynchronous pin.
func (r Role) IsAsync() bool { return r == RoleRecovery || r == RoleRemoval }

// IsLaunch reports if the edge turns a clock into data.
func (r Role) IsLaunch() bool { return r == RoleRegClkToQ || r == RoleLatchEnToQ }

// CheckMinMax returns the analysis mode a timing check constrains.
func (r Role) CheckMinMax() corner.MinMax {
	switch r {
	case RoleHold, RoleRemoval:
		return corner.Min
	default:
		return corner.Max
	}
}
