package helios

import (
	"context"
	"fmt"
	"time"
)

// Facade defaults, matching the device's usual installation: switch 1
// drives the main entry lock, reader 2 is the external fingerprint reader
// and finger index 6 is the right index finger.
const (
	DefaultSwitchID    = 1
	DefaultLogWindow   = 7
	DefaultFingerIndex = 6
	DefaultReaderID    = 2
)

// userQueryFields is the projection used for directory listings.
var userQueryFields = []string{"name", "access.pin"}

// AccessEntry is one successful-entry log record, reduced to what callers
// of the facade care about.
type AccessEntry struct {
	Name string
	Time time.Time
}

// Options carries facade-level tuning. The zero value is usable.
type Options struct {
	// EventFilter selects which device log events Log reports.
	// Empty means DefaultEventFilter.
	EventFilter string

	// Enroll configures enrollment timing.
	Enroll EnrollConfig
}

// Intercom is the high-level facade over one device. It composes the
// gateways so callers get a flat API; every method is a thin delegation
// and anything needing finer control can use the gateways directly.
type Intercom struct {
	client    *Client
	directory *Directory
	switches  *Switches
	logs      *Logs
	enroller  *Enroller
}

// New builds an Intercom for the device described by cfg.
//
// Parameters:
//   - cfg: device address and credentials.
//   - opts: facade tuning; pass the zero value for defaults.
//
// Returns:
//   - *Intercom: ready to use, no connection is established up front.
func New(cfg Config, opts Options) *Intercom {
	client := NewClient(cfg)
	directory := NewDirectory(client)
	return &Intercom{
		client:    client,
		directory: directory,
		switches:  NewSwitches(client),
		logs:      NewLogs(client, opts.EventFilter),
		enroller:  NewEnroller(client, directory, opts.Enroll),
	}
}

// Log returns the successful entries recorded within the last windowDays
// days, most recent ordering as reported by the device. windowDays <= 0
// means DefaultLogWindow.
//
// Each call runs a full subscribe, pull, unsubscribe cycle so no
// subscription is left consuming a device channel slot. The unsubscribe is
// best effort: the device expires orphaned subscriptions on its own.
func (i *Intercom) Log(ctx context.Context, windowDays int) ([]AccessEntry, error) {
	if windowDays <= 0 {
		windowDays = DefaultLogWindow
	}

	id, err := i.logs.Subscribe(ctx, windowDays)
	if err != nil {
		return nil, fmt.Errorf("subscribing to entry log: %w", err)
	}
	defer func() {
		_ = i.logs.Unsubscribe(context.WithoutCancel(ctx), id)
	}()

	events, err := i.logs.Pull(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pulling entry log: %w", err)
	}

	entries := make([]AccessEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, AccessEntry{
			Name: ev.Params.Name,
			Time: time.Unix(ev.UTCTime, 0).UTC(),
		})
	}
	return entries, nil
}

// DoorStatus reports the lock state of a switch. switchID <= 0 means
// DefaultSwitchID.
func (i *Intercom) DoorStatus(ctx context.Context, switchID int) (SwitchState, error) {
	if switchID <= 0 {
		switchID = DefaultSwitchID
	}
	return i.switches.Status(ctx, switchID)
}

// ControlDoor opens, locks or unlocks a switch. switchID <= 0 means
// DefaultSwitchID.
func (i *Intercom) ControlDoor(ctx context.Context, action SwitchAction, switchID int) error {
	if switchID <= 0 {
		switchID = DefaultSwitchID
	}
	return i.switches.Control(ctx, action, switchID)
}

// Users lists all directory users, projected to name and access PIN.
func (i *Intercom) Users(ctx context.Context) ([]User, error) {
	return i.directory.Query(ctx, userQueryFields)
}

// User fetches the full record for one user by UUID.
func (i *Intercom) User(ctx context.Context, uuid string) (*User, error) {
	return i.directory.Get(ctx, uuid)
}

// AddUser creates a directory user with a name, email and access PIN.
func (i *Intercom) AddUser(ctx context.Context, name, email string, pin int) error {
	return i.directory.Create(ctx, name, email, pin)
}

// RemoveUser deletes a directory user by UUID.
func (i *Intercom) RemoveUser(ctx context.Context, uuid string) error {
	return i.directory.Delete(ctx, uuid)
}

// UpdateUserAccess patches a user's PIN and/or fingerprint record. Fields
// left nil on upd are untouched.
func (i *Intercom) UpdateUserAccess(ctx context.Context, uuid string, upd AccessUpdate) error {
	return i.directory.UpdateAccess(ctx, uuid, upd)
}

// EnrollFingerprint captures a fingerprint and attaches it to the user.
// finger <= 0 means DefaultFingerIndex, reader <= 0 means DefaultReaderID.
// The call blocks for the whole capture; cancel ctx to abandon it.
func (i *Intercom) EnrollFingerprint(ctx context.Context, uuid string, finger, reader int) (EnrollmentResult, error) {
	if finger <= 0 {
		finger = DefaultFingerIndex
	}
	if reader <= 0 {
		reader = DefaultReaderID
	}
	return i.enroller.Enroll(ctx, uuid, finger, reader)
}
