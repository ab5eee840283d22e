package http

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/pkg/interp"
	"github.com/samirrijal/magvar/internal/pkg/metrics"
	"github.com/samirrijal/magvar/internal/pkg/ntptime"
)

var tracer = otel.Tracer("magvar/http")

// parseTimeParam accepts either RFC 3339 or raw NTP seconds, the two
// timestamp forms instrument operators work with.
func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return ntptime.Time(v)
	}
	return time.Time{}, fmt.Errorf("time %q is neither RFC 3339 nor NTP seconds", raw)
}

// DeclinationHandler evaluates declination for a single point in space and time.
// GET /v1/declination?lat=44.64&lon=-124.3&depth_m=25&time=2013-04-15T06:29:00Z
func DeclinationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		latRaw := c.Query("lat")
		lonRaw := c.Query("lon")
		if latRaw == "" || lonRaw == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return errBadRequest(c, "lat must be a number")
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			return errBadRequest(c, "lon must be a number")
		}
		depthM := c.QueryFloat("depth_m", 0)
		if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
			return errBadRequest(c, "lat must be between -90 and 90")
		}
		if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 360 {
			return errBadRequest(c, "lon must be between -180 and 360")
		}
		if math.IsNaN(depthM) || math.IsInf(depthM, 0) {
			return errBadRequest(c, "depth_m must be finite")
		}

		orientation := domain.BelowSeaLevel
		if raw := c.Query("orientation"); raw != "" {
			orientation, err = domain.ParseOrientation(raw)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
		}

		at := time.Now().UTC()
		if raw := c.Query("time"); raw != "" {
			at, err = parseTimeParam(raw)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
		}

		start := time.Now()
		decl, err := deps.Declination.EvaluateAt(c.UserContext(), lat, lon, depthM, orientation, at)
		if err != nil {
			if errors.Is(err, domain.ErrModelNotFound) || errors.Is(err, domain.ErrResourceNotFound) {
				return errNotFound(c, err.Error())
			}
			if errors.Is(err, ntptime.ErrInvalidTimestamp) {
				return errUnprocessable(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		metrics.DeclinationsEvaluated.WithLabelValues("single").Inc()
		metrics.EvaluationDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())

		return c.JSON(fiber.Map{
			"declination_deg": decl,
			"model_epoch":     deps.Declination.EpochYear(),
			"date":            at.Truncate(24 * time.Hour).Format("2006-01-02"),
		})
	}
}

// BatchDeclinationHandler evaluates declination for index-aligned arrays.
// POST /v1/declination:batch
func BatchDeclinationHandler(deps *Dependencies) fiber.Handler {
	type batchRequest struct {
		Lats        []float64 `json:"lats"`
		Lons        []float64 `json:"lons"`
		Times       []float64 `json:"times"` // NTP seconds
		Depths      []float64 `json:"depths"`
		Orientation string    `json:"orientation"`
	}

	return func(c *fiber.Ctx) error {
		var req batchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Lats) == 0 {
			return errBadRequest(c, "at least one sample is required")
		}

		orientation := domain.BelowSeaLevel
		if req.Orientation != "" {
			o, err := domain.ParseOrientation(req.Orientation)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			orientation = o
		}
		batch := domain.ObservationBatch{
			Lats:        req.Lats,
			Lons:        req.Lons,
			Times:       req.Times,
			Depths:      req.Depths,
			Orientation: orientation,
		}
		if len(batch.Depths) == 0 {
			batch.Depths = []float64{0}
		}

		ctx, span := tracer.Start(c.UserContext(), "declination.batch",
			trace.WithAttributes(attribute.Int("samples", batch.Len())))
		defer span.End()

		start := time.Now()
		decls, err := deps.Declination.Evaluate(ctx, batch)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, domain.ErrShapeMismatch) || errors.Is(err, ntptime.ErrInvalidTimestamp) {
				return errUnprocessable(c, err.Error())
			}
			if errors.Is(err, domain.ErrModelNotFound) || errors.Is(err, domain.ErrResourceNotFound) {
				return errNotFound(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		metrics.DeclinationsEvaluated.WithLabelValues("batch").Add(float64(len(decls)))
		metrics.EvaluationDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())

		return c.JSON(fiber.Map{
			"declinations": decls,
			"count":        len(decls),
			"model_epoch":  deps.Declination.EpochYear(),
		})
	}
}

// CorrectionsHandler rotates instrument-frame velocity pairs to true north.
// A single-element theta array broadcasts across all pairs.
// POST /v1/corrections
func CorrectionsHandler(deps *Dependencies) fiber.Handler {
	type correctionsRequest struct {
		Theta []float64 `json:"theta"` // declination, degrees
		East  []float64 `json:"east"`
		North []float64 `json:"north"`
	}

	return func(c *fiber.Ctx) error {
		var req correctionsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.East) == 0 && len(req.North) == 0 && len(req.Theta) == 0 {
			return errBadRequest(c, "theta, east and north arrays are required")
		}

		east, north, err := domain.RotateVectors(req.Theta, req.East, req.North)
		if err != nil {
			return errUnprocessable(c, err.Error())
		}

		return c.JSON(fiber.Map{
			"east_true":  east,
			"north_true": north,
			"count":      len(east),
		})
	}
}

// InterpolateHandler estimates a value inside a rectangle of reference samples.
// POST /v1/interpolate
func InterpolateHandler(deps *Dependencies) fiber.Handler {
	type interpolateRequest struct {
		X       float64         `json:"x"`
		Y       float64         `json:"y"`
		Corners []interp.Sample `json:"corners"`
	}

	return func(c *fiber.Ctx) error {
		var req interpolateRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Corners) != 4 {
			return errUnprocessable(c, "exactly four corner samples are required")
		}

		corners := [4]interp.Sample{req.Corners[0], req.Corners[1], req.Corners[2], req.Corners[3]}
		v, err := interp.Bilinear(req.X, req.Y, corners)
		if err != nil {
			return errUnprocessable(c, err.Error())
		}

		return c.JSON(fiber.Map{"value": v})
	}
}

// ListDeploymentsHandler returns a page of deployments.
// GET /v1/deployments?offset=0&limit=50
func ListDeploymentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		deployments, total, err := deps.Deployments.List(c.UserContext(), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: deployments, Pagination: pg})
	}
}

// GetDeploymentHandler returns a single deployment by reference designator.
func GetDeploymentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "deployment id is required")
		}
		d, err := deps.Deployments.GetByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, domain.ErrDeploymentNotFound) {
				return errNotFound(c, "deployment not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(d)
	}
}

// NearestDeploymentsHandler returns active deployments closest to a point,
// ordered by great-circle distance.
// GET /v1/deployments/nearest?lat=44.6&lon=-124.3&limit=5
func NearestDeploymentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		latRaw := c.Query("lat")
		lonRaw := c.Query("lon")
		if latRaw == "" || lonRaw == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
			return errBadRequest(c, "lat must be between -90 and 90")
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil || math.IsNaN(lon) || lon < -180 || lon > 360 {
			return errBadRequest(c, "lon must be between -180 and 360")
		}
		limit := c.QueryInt("limit", 5)

		deployments, err := deps.Deployments.Nearest(c.UserContext(), lat, lon, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(deployments)
	}
}

// DeploymentSeriesHandler returns corrected vectors for a deployment, either
// the latest samples or a [from, to] window.
// GET /v1/deployments/:id/series?from=2013-04-15T00:00:00Z&to=2013-04-16T00:00:00Z
func DeploymentSeriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "deployment id is required")
		}
		limit := c.QueryInt("limit", 0)

		var from, to time.Time
		fromRaw, toRaw := c.Query("from"), c.Query("to")
		if (fromRaw == "") != (toRaw == "") {
			return errBadRequest(c, "from and to must be provided together")
		}
		if fromRaw != "" {
			var err error
			if from, err = parseTimeParam(fromRaw); err != nil {
				return errBadRequest(c, err.Error())
			}
			if to, err = parseTimeParam(toRaw); err != nil {
				return errBadRequest(c, err.Error())
			}
			if !to.After(from) {
				return errBadRequest(c, "to must be after from")
			}
		}

		series, err := deps.Deployments.Series(c.UserContext(), id, from, to, limit)
		if err != nil {
			if errors.Is(err, domain.ErrDeploymentNotFound) {
				return errNotFound(c, "deployment not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(series)
	}
}

// ReprocessDeploymentHandler starts an asynchronous re-correction of a
// deployment's stored window and returns 202 with the workflow run ID.
// POST /v1/deployments/:id/reprocess
func ReprocessDeploymentHandler(deps *Dependencies) fiber.Handler {
	type reprocessRequest struct {
		From string `json:"from"`
		To   string `json:"to"`
	}

	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "deployment id is required")
		}

		var req reprocessRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.From == "" || req.To == "" {
			return errBadRequest(c, "from and to are required")
		}
		from, err := parseTimeParam(req.From)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		to, err := parseTimeParam(req.To)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if !to.After(from) {
			return errBadRequest(c, "to must be after from")
		}

		runID, err := deps.Deployments.Reprocess(c.UserContext(), id, from, to)
		if err != nil {
			if errors.Is(err, domain.ErrDeploymentNotFound) {
				return errNotFound(c, "deployment not found")
			}
			return errInternal(c, err.Error())
		}

		LoggerFromCtx(c.UserContext()).Info("reprocess launched",
			"deployment", id, "run_id", runID,
			"from", from.Format(time.RFC3339), "to", to.Format(time.RFC3339))

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":        "accepted",
			"run_id":        runID,
			"deployment_id": id,
			"from":          from.UTC().Format(time.RFC3339),
			"to":            to.UTC().Format(time.RFC3339),
		})
	}
}
