package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/sonyflake"
)

var errNoMachineID = errors.New("sonyflake cannot resolve machine id")

// IDGen gives job ids which are roughly ordered by enqueue time.
type IDGen struct {
	sf *sonyflake.Sonyflake
}

// NewIDGen uses the private IP as the machine id, falling back to machineID
// when the host has no private address (containers, laptops on public networks).
func NewIDGen(machineID uint16) (*IDGen, error) {
	startTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sf := sonyflake.NewSonyflake(sonyflake.Settings{StartTime: startTime})
	if sf == nil {
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: startTime,
			MachineID: func() (uint16, error) {
				return machineID, nil
			},
		})
	}

	if sf == nil {
		return nil, errNoMachineID
	}

	return &IDGen{sf: sf}, nil
}

func (g *IDGen) NextID() (uint64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, fmt.Errorf("cannot generate job id: %w", err)
	}

	return id, nil
}
