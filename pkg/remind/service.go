// Package remind is the reminder collaborator layer on top of the
// record store: it resolves caller-supplied times into absolute
// instants, creates notifications and answers list/cancel requests.
// Natural-language understanding lives behind the Resolver interface;
// this package performs no parsing of its own.
package remind

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rahulyyadav/Evara/pkg/store"
)

// Resolver turns free-form time text plus a timezone into an absolute
// instant. Owned by the orchestration layer (an LLM or a date parser);
// the returned instant is trusted as already resolved.
type Resolver interface {
	ResolveTime(text string, loc *time.Location) (time.Time, error)
}

// Service manages reminders for the request-handling layer.
type Service struct {
	store    *store.Store
	resolver Resolver
	defaults *time.Location
}

func NewService(st *store.Store, resolver Resolver, defaultLoc *time.Location) *Service {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Service{store: st, resolver: resolver, defaults: defaultLoc}
}

// Reminder is the display form of a pending notification, with a
// 1-based ordinal for "cancel reminder 2" style requests.
type Reminder struct {
	Ordinal int
	ID      string
	Task    string
	DueAt   time.Time
}

// Set resolves whenText in the user's timezone (from country/location
// hints, falling back to the service default), rejects past instants
// and persists a new pending notification.
func (s *Service) Set(userID, task, whenText, country, location string) (store.Notification, error) {
	if strings.TrimSpace(task) == "" {
		return store.Notification{}, fmt.Errorf("reminder task is required")
	}
	if strings.TrimSpace(whenText) == "" {
		return store.Notification{}, fmt.Errorf("reminder time is required")
	}

	loc := s.locationFor(country, location)
	due, err := s.resolver.ResolveTime(whenText, loc)
	if err != nil {
		return store.Notification{}, fmt.Errorf("resolve reminder time: %w", err)
	}
	now := time.Now().In(loc)
	if !due.After(now) {
		return store.Notification{}, fmt.Errorf("reminder time %s is in the past", due.Format(time.RFC3339))
	}

	n := store.Notification{
		ID:        uuid.NewString(),
		UserID:    store.NormalizeUserID(userID),
		Task:      task,
		DueAt:     due,
		Timezone:  loc.String(),
		Status:    store.StatusPending,
		CreatedAt: now.UTC(),
	}
	if err := s.store.AddNotification(userID, n); err != nil {
		return store.Notification{}, err
	}
	return n, nil
}

// List returns the user's pending reminders sorted by due instant.
func (s *Service) List(userID string) []Reminder {
	pending := s.store.NotificationsFor(userID, store.StatusPending)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DueAt.Before(pending[j].DueAt)
	})

	out := make([]Reminder, 0, len(pending))
	for i, n := range pending {
		out = append(out, Reminder{
			Ordinal: i + 1,
			ID:      n.ID,
			Task:    n.Task,
			DueAt:   n.DueAt,
		})
	}
	return out
}

// Cancel cancels a pending reminder by id.
func (s *Service) Cancel(userID, reminderID string) error {
	for _, r := range s.List(userID) {
		if r.ID == reminderID {
			return s.store.CancelNotification(reminderID)
		}
	}
	return fmt.Errorf("reminder %s: %w", reminderID, store.ErrNotificationNotFound)
}

// CancelByOrdinal cancels by the 1-based position shown in List.
func (s *Service) CancelByOrdinal(userID string, ordinal int) (Reminder, error) {
	reminders := s.List(userID)
	if ordinal < 1 || ordinal > len(reminders) {
		return Reminder{}, fmt.Errorf("reminder #%d: %w", ordinal, store.ErrNotificationNotFound)
	}
	r := reminders[ordinal-1]
	if err := s.store.CancelNotification(r.ID); err != nil {
		return Reminder{}, err
	}
	return r, nil
}

// locationFor maps country/city hints to an IANA timezone, defaulting
// to the service's configured scheduling timezone.
func (s *Service) locationFor(country, location string) *time.Location {
	if tz, ok := countryTimezones[strings.ToLower(strings.TrimSpace(country))]; ok {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if tz, ok := cityTimezones[strings.ToLower(strings.TrimSpace(location))]; ok {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return s.defaults
}

var countryTimezones = map[string]string{
	"india":                "Asia/Kolkata",
	"nepal":                "Asia/Kathmandu",
	"usa":                  "America/New_York",
	"united states":        "America/New_York",
	"uk":                   "Europe/London",
	"united kingdom":       "Europe/London",
	"canada":               "America/Toronto",
	"australia":            "Australia/Sydney",
	"germany":              "Europe/Berlin",
	"france":               "Europe/Paris",
	"japan":                "Asia/Tokyo",
	"china":                "Asia/Shanghai",
	"singapore":            "Asia/Singapore",
	"uae":                  "Asia/Dubai",
	"united arab emirates": "Asia/Dubai",
	"saudi arabia":         "Asia/Riyadh",
}

var cityTimezones = map[string]string{
	"mumbai":      "Asia/Kolkata",
	"delhi":       "Asia/Kolkata",
	"bangalore":   "Asia/Kolkata",
	"chennai":     "Asia/Kolkata",
	"kolkata":     "Asia/Kolkata",
	"kathmandu":   "Asia/Kathmandu",
	"new york":    "America/New_York",
	"los angeles": "America/Los_Angeles",
	"london":      "Europe/London",
	"toronto":     "America/Toronto",
	"sydney":      "Australia/Sydney",
	"tokyo":       "Asia/Tokyo",
}
