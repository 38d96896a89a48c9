package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the canonical attendance status. The portal shows Indonesian
// labels (Hadir/Sakit/Izin/Alpa); both spellings parse to the same value.
type Status string

const (
	StatusPresent Status = "present"
	StatusSick    Status = "sick"
	StatusPermit  Status = "permit"
	StatusAbsent  Status = "absent"
)

var statusLabels = map[Status]string{
	StatusPresent: "Hadir",
	StatusSick:    "Sakit",
	StatusPermit:  "Izin",
	StatusAbsent:  "Alpa",
}

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusPresent, StatusSick, StatusPermit, StatusAbsent}
}

func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for st, label := range statusLabels {
		if key == string(st) || key == strings.ToLower(label) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown attendance status %q", s)
}

// Label returns the Indonesian display label.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// UnmarshalJSON normalizes known spellings. Stored rows may hold null or a
// value outside the vocabulary; those decode as is and report !Valid, so one
// bad row does not fail a whole read. Input validation goes through
// ParseStatus.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = ""
		return nil
	}
	if parsed, err := ParseStatus(*raw); err == nil {
		*s = parsed
		return nil
	}
	*s = Status(*raw)
	return nil
}
