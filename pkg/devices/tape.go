package devices

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tape is a port device that replays a fixed sequence of input bytes and
// records every byte written to it. Reads past the end return 0.
type Tape struct {
	Input    []byte `json:"input"`
	Pos      int    `json:"pos"`
	Recorded []byte `json:"recorded"`
}

// NewTape creates a Tape that will serve input in order.
func NewTape(input ...byte) *Tape {
	return &Tape{Input: input}
}

// ParseTape builds a Tape from whitespace-separated integers in -128..255.
func ParseTape(s string) (*Tape, error) {
	t := NewTape()
	for _, field := range strings.Fields(s) {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(err, "tape value %q", field)
		}
		if v < -128 || v > 255 {
			return nil, errors.Errorf("tape value %d does not fit in a byte", v)
		}
		t.Input = append(t.Input, byte(v))
	}
	return t, nil
}

func (t *Tape) In() (byte, error) {
	if t.Pos >= len(t.Input) {
		return 0, nil
	}
	v := t.Input[t.Pos]
	t.Pos++
	return v, nil
}

func (t *Tape) Out(val byte) error {
	t.Recorded = append(t.Recorded, val)
	return nil
}

// Remaining reports how many input bytes have not been read yet.
func (t *Tape) Remaining() int {
	return len(t.Input) - t.Pos
}

// SaveState serializes the tape position and contents.
func (t *Tape) SaveState() []byte {
	b, _ := json.Marshal(t)
	return b
}

// LoadState deserializes the tape state.
func (t *Tape) LoadState(data []byte) error {
	return json.Unmarshal(data, t)
}
