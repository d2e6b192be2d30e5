package model

import "time"

// Parking space statuses as stored in parking_spaces.status.
const (
	SpaceVacant   = "VACANT"
	SpaceOccupied = "OCCUPIED"
	SpaceReserved = "RESERVED"
)

// ParkingSpace represents a single physical parking space.  A space
// belongs to exactly one zone and carries its current occupancy or
// reservation state.  Sensor ingestion flips the status between
// VACANT and OCCUPIED; the reservation engine is the only writer of
// the RESERVED status.
//
// Fields:
//  ID            – primary key identifier.
//  ZoneID        – zone this space belongs to.
//  Label         – human-readable space number painted on the ground.
//  Status        – VACANT, OCCUPIED or RESERVED.
//  Latitude      – map coordinate.
//  Longitude     – map coordinate.
//  OccupantPlate – license plate of the current occupant or reserver (nullable).
//  ReservedFrom  – reservation window start (nullable).
//  ReservedUntil – reservation window end (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type ParkingSpace struct {
	ID            uint64     // parking_spaces.id
	ZoneID        uint64     // parking_spaces.zone_id
	Label         string     // parking_spaces.label
	Status        string     // parking_spaces.status
	Latitude      float64    // parking_spaces.latitude
	Longitude     float64    // parking_spaces.longitude
	OccupantPlate *string    // parking_spaces.occupant_plate (nullable)
	ReservedFrom  *time.Time // parking_spaces.reserved_from (nullable)
	ReservedUntil *time.Time // parking_spaces.reserved_until (nullable)
	CreatedAt     time.Time  // parking_spaces.created_at
	UpdatedAt     time.Time  // parking_spaces.updated_at
}

// AvailableAt reports whether the space can accept a new reservation at
// the given instant.  A space is available when it is VACANT, or when a
// previous reservation window has already lapsed.  The reservation write
// itself re-applies the same predicate atomically; this helper only
// drives early availability checks and pre-checkout answers.
func (s *ParkingSpace) AvailableAt(now time.Time) bool {
	switch s.Status {
	case SpaceVacant:
		return true
	case SpaceReserved:
		return s.ReservedUntil != nil && !s.ReservedUntil.After(now)
	default:
		return false
	}
}
