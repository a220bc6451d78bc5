package controller

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when PortOptions.BaudRate is unset.
const DefaultBaudRate = 115200

// PortOptions describes the serial line to the humanoid controller.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// parities maps accepted spellings to the canonical letter.
var parities = map[string]string{
	"": "N", "N": "N", "NONE": "N",
	"E": "E", "EVEN": "E",
	"O": "O", "ODD": "O",
}

var serialParity = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

var serialStopBits = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

// Normalize fills unset fields with 8N1 at DefaultBaudRate and rejects
// values the controller link cannot use.
func (o PortOptions) Normalize() (PortOptions, error) {
	n := o
	if n.BaudRate <= 0 {
		n.BaudRate = DefaultBaudRate
	}
	if n.DataBits == 0 {
		n.DataBits = 8
	}
	if n.StopBits == 0 {
		n.StopBits = 1
	}

	if n.DataBits < 5 || n.DataBits > 8 {
		return n, fmt.Errorf("invalid data bits %d: must be between 5 and 8", n.DataBits)
	}
	if _, ok := serialStopBits[n.StopBits]; !ok {
		return n, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", n.StopBits)
	}
	parity, ok := parities[strings.ToUpper(strings.TrimSpace(n.Parity))]
	if !ok {
		return n, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	n.Parity = parity
	return n, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		Parity:   serialParity[n.Parity],
		StopBits: serialStopBits[n.StopBits],
	}, nil
}
