package helios

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SwitchState is the derived state of a door switch.
type SwitchState string

// Switch states derived from the device's (active, held) flags.
const (
	// SwitchLocked: the switch is inactive. Also reported for the
	// held-but-inactive flag combination, which the device contract
	// declares unreachable.
	SwitchLocked SwitchState = "locked"

	// SwitchUnlocked: the switch is active and held open indefinitely.
	SwitchUnlocked SwitchState = "unlocked"

	// SwitchTemporarilyOpened: the switch is active for one timed trigger
	// and will relock on its own.
	SwitchTemporarilyOpened SwitchState = "temporarily_opened"
)

// SwitchAction is a caller-facing door operation.
type SwitchAction string

// Door actions. Each maps to a device control verb.
const (
	ActionOpen   SwitchAction = "open"   // momentary release → device "trigger"
	ActionLock   SwitchAction = "lock"   // end a hold → device "release"
	ActionUnlock SwitchAction = "unlock" // hold open → device "hold"
)

// controlVerb maps a SwitchAction to the device's ctrl action parameter.
func controlVerb(action SwitchAction) (string, error) {
	switch action {
	case ActionOpen:
		return "trigger", nil
	case ActionLock:
		return "release", nil
	case ActionUnlock:
		return "hold", nil
	default:
		return "", fmt.Errorf("helios: unknown switch action %q", action)
	}
}

// Switches reads and controls the device's door switches.
type Switches struct {
	client *Client
}

// NewSwitches creates a switch gateway on the given client.
func NewSwitches(client *Client) *Switches {
	return &Switches{client: client}
}

// switchStatus is the per-switch result payload of /switch/status.
type switchStatus struct {
	Active bool `json:"active"`
	Held   bool `json:"held"`
}

// Status reads the state of one switch.
//
// The mapping over the device's two boolean flags is total:
//
//	active && !held  → TemporarilyOpened
//	active && held   → Unlocked
//	!active          → Locked (held flag ignored; the combination is
//	                   undefined by the device contract)
func (s *Switches) Status(ctx context.Context, switchID int) (SwitchState, error) {
	query := url.Values{}
	query.Set("switch", strconv.Itoa(switchID))

	result, err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/switch/status",
		query:  query,
	})
	if err != nil {
		return "", fmt.Errorf("reading switch %d status: %w", switchID, err)
	}

	var payload struct {
		Switches []switchStatus `json:"switches"`
	}
	if err := decodeResult(result, &payload); err != nil {
		return "", err
	}
	if len(payload.Switches) == 0 {
		return "", fmt.Errorf("%w: switch %d not in status response", ErrInvalidEnvelope, switchID)
	}

	target := payload.Switches[0]
	switch {
	case target.Active && !target.Held:
		return SwitchTemporarilyOpened, nil
	case target.Active && target.Held:
		return SwitchUnlocked, nil
	default:
		return SwitchLocked, nil
	}
}

// Control applies a door action to one switch.
func (s *Switches) Control(ctx context.Context, action SwitchAction, switchID int) error {
	verb, err := controlVerb(action)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("switch", strconv.Itoa(switchID))
	query.Set("action", verb)

	if _, err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/switch/ctrl",
		query:  query,
	}); err != nil {
		return fmt.Errorf("controlling switch %d (%s): %w", switchID, action, err)
	}
	return nil
}
