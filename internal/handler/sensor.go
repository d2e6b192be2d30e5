package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation-bot/internal/repository"
)

// SensorHandler ingests occupancy reports from lot sensors.  Sensors
// authenticate with a shared token header; they are trusted to report
// physical occupancy but never touch reservation state.
type SensorHandler struct {
	Spaces *repository.SpaceRepo
	Token  string
}

func NewSensorHandler(spaces *repository.SpaceRepo, token string) *SensorHandler {
	return &SensorHandler{Spaces: spaces, Token: token}
}

type occupancyReq struct {
	SpaceID  uint64  `json:"space_id"`
	Occupied bool    `json:"occupied"`
	Plate    *string `json:"plate,omitempty"`
}

// ReportOccupancy applies one occupancy update.  An occupied report
// marks the space OCCUPIED (with the recognized plate when the sensor
// has camera support); a vacancy report releases OCCUPIED spaces only,
// reserved spaces are left for the reservation sweep.
func (h *SensorHandler) ReportOccupancy(c echo.Context) error {
	if c.Request().Header.Get("X-Sensor-Token") != h.Token {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid sensor token"})
	}
	var req occupancyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SpaceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "space_id required"})
	}
	if req.Plate != nil {
		p := strings.ToUpper(strings.TrimSpace(*req.Plate))
		if p == "" {
			req.Plate = nil
		} else {
			req.Plate = &p
		}
	}

	ctx := c.Request().Context()
	var err error
	if req.Occupied {
		err = h.Spaces.MarkOccupied(ctx, req.SpaceID, req.Plate)
	} else {
		err = h.Spaces.MarkVacant(ctx, req.SpaceID)
	}
	if err == repository.ErrSpaceNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
