package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/due"
)

const (
	maxBodySize          = 256 * 1024
	headerIdempotencyKey = "Idempotency-Key"
	healthTimeout        = 2 * time.Second
)

// Options configures Register.
type Options struct {
	// Deduper de-duplicates bulk updates by Idempotency-Key; nil disables it.
	Deduper Deduper
	// Broker feeds /api/stream; nil disables the route.
	Broker *Broker
	// Heartbeat is the stream keep-alive interval.
	Heartbeat time.Duration
	// Location is used for timed calendar events.
	Location *time.Location
}

type bulkUpdateRequest struct {
	Updates []domain.BulkItem `json:"updates"`
}

type countResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc *Service, auth Authenticator, opts Options, logger *log.Logger) {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	e.GET("/api/tasks", getTasks(svc, auth, logger))
	e.POST("/api/tasks", postTask(svc, auth))
	e.GET("/api/tasks/stats", getStats(svc, auth))
	e.PUT("/api/tasks/bulk/update", putBulkUpdate(svc, auth, opts.Deduper, logger))
	e.POST("/api/tasks/bulk/reschedule", postReschedule(svc, auth))
	e.PUT("/api/tasks/:id", putTask(svc, auth))
	e.DELETE("/api/tasks/:id", deleteTask(svc, auth))
	e.GET("/api/board", getBoard(svc, auth))
	e.GET("/api/calendar/feed", getCalendarFeed(svc, auth, opts.Location))
	if opts.Broker != nil {
		e.GET("/api/stream", streamEvents(auth, opts.Broker, opts.Heartbeat))
	}
	e.GET("/healthz", healthz(svc))
}

func healthz(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

func authenticate(c echo.Context, auth Authenticator) (string, error) {
	return auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// decodeBody reads a JSON body, rejecting unknown fields and oversized payloads.
func decodeBody(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidReschedule), errors.Is(err, ErrNoTasks):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func failure(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.String(status, err.Error())
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func listQuery(c echo.Context) (ListQuery, error) {
	q := ListQuery{
		Agencies: splitList(c.QueryParam("agency")),
		Statuses: splitList(c.QueryParam("status")),
		Search:   strings.TrimSpace(c.QueryParam("search")),
		Sort:     c.QueryParam("sort"),
		Dir:      due.ParseDirection(strings.ToLower(c.QueryParam("dir"))),
	}
	if q.Sort == "" {
		q.Sort = c.QueryParam("sort_by")
	}
	switch q.Sort {
	case "":
		q.Sort = SortDueIn
	case SortDueIn, SortDeadlineDate, SortTaskNumber:
	default:
		return ListQuery{}, fmt.Errorf("invalid sort %q", q.Sort)
	}
	return q, nil
}

func getTasks(svc *Service, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := authenticate(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			return c.String(http.StatusUnauthorized, authErr.Error())
		}

		q, qErr := listQuery(c)
		if qErr != nil {
			metrics.SetErrorStage("invalid_query")
			return c.String(http.StatusBadRequest, qErr.Error())
		}
		metrics.SetQuery(q.Sort, len(q.Agencies) > 0 || len(q.Statuses) > 0 || q.Search != "")

		fetchStart := time.Now()
		tasks, fetchErr := svc.List(ctx, q)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			return c.String(http.StatusInternalServerError, fetchErr.Error())
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getStats(svc *Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		stats, err := svc.Stats(c.Request().Context())
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func postTask(svc *Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := svc.Create(c.Request().Context(), t)
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func putTask(svc *Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var p domain.Patch
		if err := decodeBody(c, &p); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		updated, err := svc.Update(c.Request().Context(), c.Param("id"), p)
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func putBulkUpdate(svc *Service, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req bulkUpdateRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		ctx := c.Request().Context()
		key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
		if key != "" && deduper != nil {
			added, derr := deduper.Add(ctx, userID, key)
			if derr != nil {
				logger.WithError(derr).Warn("idempotency check failed; applying batch")
			} else if !added {
				return c.JSON(http.StatusOK, countResponse{Message: "Duplicate request ignored"})
			}
		}

		n, err := svc.BulkUpdate(ctx, req.Updates)
		if err != nil {
			if key != "" && deduper != nil {
				if rerr := deduper.Remove(context.WithoutCancel(ctx), userID, key); rerr != nil {
					logger.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, key, userID)
				}
			}
			return failure(c, err)
		}
		return c.JSON(http.StatusOK, countResponse{
			Message: fmt.Sprintf("Successfully updated %d tasks", n),
			Updated: n,
		})
	}
}

func postReschedule(svc *Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req RescheduleRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		n, err := svc.Reschedule(c.Request().Context(), req)
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(http.StatusOK, countResponse{
			Message: fmt.Sprintf("Successfully rescheduled %d tasks", n),
			Updated: n,
		})
	}
}

func deleteTask(svc *Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return failure(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getBoard(svc *Service, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		mode, err := board.ParseViewMode(c.QueryParam("view"))
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		week := svc.now()
		if raw := c.QueryParam("week"); raw != "" {
			d, ok := domain.ParseDate(raw)
			if !ok {
				return c.String(http.StatusBadRequest, "invalid week")
			}
			week = d
		}
		b, err := svc.Board(c.Request().Context(), week, mode)
		if err != nil {
			return failure(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

func getCalendarFeed(svc *Service, auth Authenticator, loc *time.Location) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = bearerScheme + " " + token
		}
		if _, err := auth.UserIDFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		feed, err := svc.CalendarFeed(c.Request().Context(), loc)
		if err != nil {
			return failure(c, err)
		}
		return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
	}
}
