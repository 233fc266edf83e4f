// Package clock keeps a wall-clock time of day and lays it out for a chain
// of four 8x8 LED matrix modules.
package clock

import (
	"errors"

	"picodemo/x/conv"
)

var ErrFormat = errors.New("clock: want HH:MM:SS")

// State is a time of day. The zero value is midnight.
type State struct {
	Hours, Mins, Secs uint8
}

// Tick advances one second. It reports whether the minute rolled over.
func (s *State) Tick() bool {
	s.Secs++
	if s.Secs < 60 {
		return false
	}
	s.Secs = 0
	s.AddMinute()
	return true
}

// AddMinute advances one minute, carrying into hours modulo 24.
// Seconds are left untouched.
func (s *State) AddMinute() {
	s.Mins++
	if s.Mins < 60 {
		return
	}
	s.Mins = 0
	s.Hours = (s.Hours + 1) % 24
}

// Valid reports whether every field is within range.
func (s State) Valid() bool { return s.Hours < 24 && s.Mins < 60 && s.Secs < 60 }

// String formats the state as HH:MM:SS.
func (s State) String() string {
	b := make([]byte, 0, 8)
	b = conv.AppendUint(b, uint64(s.Hours%100), 2)
	b = append(b, ':')
	b = conv.AppendUint(b, uint64(s.Mins%100), 2)
	b = append(b, ':')
	b = conv.AppendUint(b, uint64(s.Secs%100), 2)
	return string(b)
}

// Parse reads "HH:MM:SS". Single-digit fields are accepted.
func Parse(s string) (State, error) {
	var f [3]uint8
	field := 0
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ':' {
			continue
		}
		if field > 2 || i == start {
			return State{}, ErrFormat
		}
		n, ok := conv.ParseUint8(s[start:i])
		if !ok {
			return State{}, ErrFormat
		}
		f[field] = n
		field++
		start = i + 1
	}
	st := State{Hours: f[0], Mins: f[1], Secs: f[2]}
	if field != 3 || !st.Valid() {
		return State{}, ErrFormat
	}
	return st, nil
}
