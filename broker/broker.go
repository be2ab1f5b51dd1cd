// Package broker defines the contract every broker integration implements:
// the Account interface with its primitive operations, the order model and
// order directives, and the metrics derived from those primitives.
package broker

import "fmt"

// Broker identifies a trading platform. Connecting and authenticating is
// up to the integration.
type Broker interface {
	Name() string
}

type Operativity string

const (
	Demo Operativity = "demo"
	Real Operativity = "real"
)

func ParseOperativity(s string) (Operativity, error) {
	switch Operativity(s) {
	case Demo, Real:
		return Operativity(s), nil
	default:
		return "", fmt.Errorf("unknown operativity %q", s)
	}
}

// AccountInfo holds the static attributes of an account.
type AccountInfo struct {
	ID          string
	OwnerName   string
	Operativity Operativity
	CurrencyISO string
	Broker      string
}
