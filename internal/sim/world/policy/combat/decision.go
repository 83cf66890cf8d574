package combat

import "fmt"

type Verdict int

const (
	Allow Verdict = iota
	Deny
	Scale
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "ALLOW"
	case Deny:
		return "DENY"
	case Scale:
		return "SCALE"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Decision is the outcome for one combat event. Factor is only meaningful for
// Scale. StartsRaid asks the caller to open a raid zone at the target's
// controlling structure.
type Decision struct {
	Verdict    Verdict
	Factor     float64
	Reason     string
	StartsRaid bool
}

func allow(reason string) Decision { return Decision{Verdict: Allow, Factor: 1, Reason: reason} }

func deny(reason string) Decision { return Decision{Verdict: Deny, Reason: reason} }

func scale(f float64, reason string) Decision {
	return Decision{Verdict: Scale, Factor: f, Reason: reason}
}

// Multiplier is the factor to apply to incoming damage.
func (d Decision) Multiplier() float64 {
	switch d.Verdict {
	case Allow:
		return 1
	case Scale:
		return d.Factor
	}
	return 0
}

func (d Decision) String() string {
	if d.Verdict == Scale {
		return fmt.Sprintf("SCALE(%.2f) %s", d.Factor, d.Reason)
	}
	return d.Verdict.String() + " " + d.Reason
}
