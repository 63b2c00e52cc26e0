package classifier

import (
	"fmt"
	"strings"
)

// Label is the ground truth of a training example. Human is the positive
// class.
type Label uint8

const (
	Bot Label = iota
	Human
)

func (l Label) String() string {
	switch l {
	case Human:
		return "human"
	case Bot:
		return "bot"
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human":
		return Human, nil
	case "bot", "synthetic", "tts":
		return Bot, nil
	}
	return 0, fmt.Errorf("classifier: unknown label %q", s)
}

func (l Label) target() float64 {
	if l == Human {
		return 1
	}
	return 0
}
