package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/openspot/openspot/internal/geo"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

// Sender is satisfied by *Service; tests substitute a recorder.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// Alerter notifies profiles when an open spot lands inside one of their
// favorite areas.
type Alerter struct {
	favorites *store.FavoriteStore
	pushes    *store.PushStore
	sender    Sender
	logger    *slog.Logger
}

func NewAlerter(fs *store.FavoriteStore, ps *store.PushStore, sender Sender, logger *slog.Logger) *Alerter {
	return &Alerter{favorites: fs, pushes: ps, sender: sender, logger: logger}
}

// SpotOpened fans an alert out to every profile with a matching favorite.
// The spot's own reporter is skipped. Errors are logged, not returned: alert
// delivery is best effort and must never fail the spot creation.
func (a *Alerter) SpotOpened(spot *model.Spot) {
	favorites, err := a.favorites.ListAll()
	if err != nil {
		a.logger.Error("list favorites for alert", "error", err)
		return
	}

	notified := make(map[int64]bool)
	for _, fav := range favorites {
		if fav.ProfileID == spot.ReporterID || notified[fav.ProfileID] {
			continue
		}
		if geo.DistanceM(spot.Lat, spot.Lng, fav.Lat, fav.Lng) > fav.RadiusM {
			continue
		}
		notified[fav.ProfileID] = true
		a.notify(fav.ProfileID, fav.Label, spot)
	}
}

func (a *Alerter) notify(profileID int64, label string, spot *model.Spot) {
	subs, err := a.pushes.ListByProfile(profileID)
	if err != nil {
		a.logger.Error("list push subscriptions", "profile_id", profileID, "error", err)
		return
	}

	payload := Payload{
		Title: "Parking spot open",
		Body:  fmt.Sprintf("A %s spot opened near %s", spot.SpotType, label),
		URL:   fmt.Sprintf("/spots/%d", spot.ID),
		Tag:   fmt.Sprintf("spot-%d", spot.ID),
	}

	for i := range subs {
		sub := &subs[i]
		err := a.sender.Send(sub, payload)
		if errors.Is(err, ErrExpired) {
			if err := a.pushes.DeleteByEndpoint(sub.Endpoint); err != nil {
				a.logger.Error("delete expired push subscription", "error", err)
			}
			continue
		}
		if err != nil {
			a.logger.Warn("send spot alert", "profile_id", profileID, "error", err)
		}
	}
}
