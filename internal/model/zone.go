package model

import "time"

// Zone groups parking spaces that share pricing and rules.  Premium
// zones require a verified payment before a reservation is granted;
// non-premium zones reserve for free.  Prices are kept per payment
// rail in the rail's native minor unit so the engine never converts
// between currencies: Stars amounts for the in-chat invoice rail and
// nanotons for the manual TON transfer rail.
//
// Fields:
//  ID               – primary key identifier.
//  Name             – display name of the zone.
//  IsPremium        – whether reservations here require payment.
//  HourlyRateStars  – hourly price in Telegram Stars (XTR).
//  HourlyRateNano   – hourly price in nanotons.
//  MaxDurationHours – longest reservation the zone allows.
//  CreatedAt        – creation timestamp.
type Zone struct {
	ID               uint64    // zones.id
	Name             string    // zones.name
	IsPremium        bool      // zones.is_premium
	HourlyRateStars  uint32    // zones.hourly_rate_stars
	HourlyRateNano   uint64    // zones.hourly_rate_nano
	MaxDurationHours uint32    // zones.max_duration_hours
	CreatedAt        time.Time // zones.created_at
}
