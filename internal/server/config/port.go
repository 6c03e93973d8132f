package config

import (
	"fmt"

	"github.com/dmitrijs2005/jimrelay/internal/common"
)

const (
	DefaultPort Port = 7777

	MinPort = 1024
	MaxPort = 65535
)

// Port is a validated TCP listen port. The only way to get a non-default Port
// from untrusted input is NewPort.
type Port uint16

// NewPort accepts MinPort through MaxPort, both ends included, and rejects
// privileged and out-of-range ports.
func NewPort(p int) (Port, error) {
	if p < MinPort || p > MaxPort {
		return 0, fmt.Errorf("%w: %d is outside %d-%d", common.ErrInvalidPort, p, MinPort, MaxPort)
	}
	return Port(p), nil
}
