package sim

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ActionCreate    = "create"
	ActionPay       = "pay"
	ActionReimburse = "reimburse"
	ActionDispute   = "dispute"
	ActionRule      = "rule"
	ActionTimeout   = "timeout"
	ActionAdvance   = "advance"
)

/*
Scenario is a list of calls replayed against freshly deployed escrow and
arbitrator contracts. Accounts are referred to by name, "platform" and
"court" are the addresses from the configuration.
*/
type Scenario struct {
	Name     string            `yaml:"name"`
	Accounts map[string]uint64 `yaml:"accounts"` // initial balances
	Steps    []Step            `yaml:"steps"`
}

type Step struct {
	Action   string        `yaml:"action"`
	From     string        `yaml:"from"`
	Receiver string        `yaml:"receiver"`
	Amount   uint64        `yaml:"amount"`
	Timeout  time.Duration `yaml:"timeout"`
	Metadata string        `yaml:"metadata"`
	Tx       uint64        `yaml:"tx"`
	Dispute  uint64        `yaml:"dispute"`
	Ruling   string        `yaml:"ruling"`
	Duration time.Duration `yaml:"duration"`
	// when set the step must fail with error containing this text
	ExpectError string `yaml:"expect_error"`
}

func ParseScenario(r io.Reader) (*Scenario, error) {
	sc := &Scenario{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	for i, s := range sc.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Step) validate() error {
	switch s.Action {
	case ActionCreate:
		if s.Receiver == "" {
			return errors.New("receiver is required")
		}
	case ActionPay, ActionReimburse, ActionDispute, ActionTimeout:
		if s.Tx == 0 {
			return errors.New("tx is required")
		}
	case ActionRule:
		if s.Dispute == 0 || s.Ruling == "" {
			return errors.New("dispute and ruling are required")
		}
	case ActionAdvance:
		if s.Duration <= 0 {
			return errors.New("duration must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.From == "" {
		return errors.New("from is required")
	}
	return nil
}
