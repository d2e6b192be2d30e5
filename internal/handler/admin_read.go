package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/repository"
)

// AdminHandler serves the read-only dashboard API: current space and
// zone state, recent reservations, and verified payments that never
// backed a reservation and need a manual refund decision.
type AdminHandler struct {
	Spaces       *repository.SpaceRepo
	Zones        *repository.ZoneRepo
	Reservations *repository.ReservationRepo
	Payments     *repository.PaymentRepo
}

func NewAdminHandler(s *repository.SpaceRepo, z *repository.ZoneRepo, r *repository.ReservationRepo, p *repository.PaymentRepo) *AdminHandler {
	return &AdminHandler{Spaces: s, Zones: z, Reservations: r, Payments: p}
}

// ----- DTOs -----

type spaceDTO struct {
	ID            uint64     `json:"id"`
	ZoneID        uint64     `json:"zone_id"`
	Label         string     `json:"label"`
	Status        string     `json:"status"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	OccupantPlate *string    `json:"occupant_plate,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
}

type zoneDTO struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	IsPremium       bool   `json:"is_premium"`
	HourlyRateStars uint32 `json:"hourly_rate_stars"`
	HourlyRateNano  uint64 `json:"hourly_rate_nano"`
}

type reservationDTO struct {
	Reference    string    `json:"reference"`
	SpaceID      uint64    `json:"space_id"`
	ZoneID       uint64    `json:"zone_id"`
	ChatID       int64     `json:"chat_id"`
	LicensePlate string    `json:"license_plate"`
	Rail         string    `json:"rail,omitempty"`
	Amount       uint64    `json:"amount"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

type paymentReviewDTO struct {
	TxReference  string    `json:"tx_reference"`
	SpaceID      uint64    `json:"space_id"`
	PayerChatID  int64     `json:"payer_chat_id"`
	LicensePlate string    `json:"license_plate"`
	Rail         string    `json:"rail"`
	Amount       uint64    `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSpaceDTO(s model.ParkingSpace) spaceDTO {
	return spaceDTO{
		ID:            s.ID,
		ZoneID:        s.ZoneID,
		Label:         s.Label,
		Status:        s.Status,
		Latitude:      s.Latitude,
		Longitude:     s.Longitude,
		OccupantPlate: s.OccupantPlate,
		ReservedUntil: s.ReservedUntil,
	}
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// ListSpaces returns all spaces, optionally filtered by ?zone_id=.
func (h *AdminHandler) ListSpaces(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var zoneID uint64
	if zq := c.QueryParam("zone_id"); zq != "" {
		n, err := strconv.ParseUint(zq, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid zone_id"})
		}
		zoneID = n
	}
	spaces, err := h.Spaces.List(ctx, zoneID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list spaces failed"})
	}
	out := make([]spaceDTO, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, toSpaceDTO(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"spaces": out})
}

// GetSpace returns one space by id.
func (h *AdminHandler) GetSpace(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Spaces.GetByID(ctx, id)
	if err == repository.ErrSpaceNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load space failed"})
	}
	return c.JSON(http.StatusOK, toSpaceDTO(*s))
}

// ListZones returns all zones with their pricing.
func (h *AdminHandler) ListZones(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	zones, err := h.Zones.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list zones failed"})
	}
	out := make([]zoneDTO, 0, len(zones))
	for _, z := range zones {
		out = append(out, zoneDTO{
			ID:              z.ID,
			Name:            z.Name,
			IsPremium:       z.IsPremium,
			HourlyRateStars: z.HourlyRateStars,
			HourlyRateNano:  z.HourlyRateNano,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"zones": out})
}

// ListReservations returns recent reservations, newest first.
func (h *AdminHandler) ListReservations(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	limit := 50
	if lq := c.QueryParam("limit"); lq != "" {
		if n, err := strconv.Atoi(lq); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	reservations, err := h.Reservations.ListRecent(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	out := make([]reservationDTO, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, reservationDTO{
			Reference:    r.Reference,
			SpaceID:      r.SpaceID,
			ZoneID:       r.ZoneID,
			ChatID:       r.ChatID,
			LicensePlate: r.LicensePlate,
			Rail:         r.Rail,
			Amount:       r.Amount,
			StartsAt:     r.StartsAt,
			EndsAt:       r.EndsAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// GetReservation looks one reservation up by its public code, the same
// code shown to the user in the confirmation message.
func (h *AdminHandler) GetReservation(c echo.Context) error {
	reference := c.Param("reference")
	if reference == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing reference"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reservations.GetByReference(ctx, reference)
	if err == repository.ErrReservationNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}
	return c.JSON(http.StatusOK, reservationDTO{
		Reference:    r.Reference,
		SpaceID:      r.SpaceID,
		ZoneID:       r.ZoneID,
		ChatID:       r.ChatID,
		LicensePlate: r.LicensePlate,
		Rail:         r.Rail,
		Amount:       r.Amount,
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
	})
}

// ReviewPayments returns verified payments that never backed a
// reservation.  These are the refund candidates: the user paid but the
// space was taken while the payment completed.
func (h *AdminHandler) ReviewPayments(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	payments, err := h.Payments.ListUnconsumedVerified(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list payments failed"})
	}
	out := make([]paymentReviewDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentReviewDTO{
			TxReference:  p.TxReference,
			SpaceID:      p.SpaceID,
			PayerChatID:  p.PayerChatID,
			LicensePlate: p.LicensePlate,
			Rail:         p.Rail,
			Amount:       p.Amount,
			CreatedAt:    p.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": out})
}
