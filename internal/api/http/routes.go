package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/snow-status-aggregation/internal/analytics"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Same rule the registry enforces, so every listed resort is addressable.
	_ = v.RegisterValidation("resortid", func(fl validator.FieldLevel) bool {
		return resort.ValidID(fl.Field().String())
	})
	return v
}

// Aggregator is what the routes read from.
type Aggregator interface {
	Latest() []resort.Record
	Get(id string) (resort.Record, error)
	Refresh(ctx context.Context, id string) (resort.Record, error)
	Health() []resort.SourceHealth
}

// ClickStore persists resort clicks. A nil or failing store only affects
// the click routes.
type ClickStore interface {
	RecordClick(ctx context.Context, resortID string, at time.Time) (int64, error)
	Counts(ctx context.Context) ([]analytics.Click, error)
}

// NewApp builds the Fiber app with middleware, error handling and all routes.
func NewApp(svc Aggregator, clicks ClickStore, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "snow-status-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// on-demand refresh may run up to a cycle deadline
		WriteTimeout: 40 * time.Second,
		ErrorHandler: errorHandler,
	})

	if accessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "snow-status-aggregation",
		})
	})

	RegisterRoutes(app, svc, clicks)
	return app
}

// errorHandler is the centralized error response.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Aggregator, clicks ClickStore) {
	v1 := app.Group("/api/v1")

	v1.Get("/resorts", func(c *fiber.Ctx) error {
		q := listQuery{Status: c.Query("status")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records := svc.Latest()
		if q.Status != "" {
			filtered := records[:0]
			for _, r := range records {
				if string(r.Status) == q.Status {
					filtered = append(filtered, r)
				}
			}
			records = filtered
		}
		return c.JSON(records)
	})

	v1.Get("/resorts/:id", func(c *fiber.Ctx) error {
		id, err := resortID(c)
		if err != nil {
			return err
		}
		rec, err := svc.Get(id)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(rec)
	})

	v1.Post("/resorts/:id/refresh", func(c *fiber.Ctx) error {
		id, err := resortID(c)
		if err != nil {
			return err
		}
		rec, err := svc.Refresh(c.UserContext(), id)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(rec)
	})

	v1.Post("/resorts/:id/click", func(c *fiber.Ctx) error {
		id, err := resortID(c)
		if err != nil {
			return err
		}
		if _, err := svc.Get(id); err != nil {
			return lookupError(err)
		}
		if clicks == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, analytics.ErrUnavailable.Error())
		}

		n, err := clicks.RecordClick(c.UserContext(), id, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(fiber.Map{"resortId": id, "clicks": n})
	})

	v1.Get("/clicks", func(c *fiber.Ctx) error {
		if clicks == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, analytics.ErrUnavailable.Error())
		}
		counts, err := clicks.Counts(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if counts == nil {
			counts = []analytics.Click{}
		}
		return c.JSON(counts)
	})

	v1.Get("/sources", func(c *fiber.Ctx) error {
		return c.JSON(svc.Health())
	})
}

// listQuery holds the optional filter for the list endpoint.
type listQuery struct {
	Status string `validate:"omitempty,oneof=live static maintenance stale error"`
}

// idParam holds the resort id path parameter.
type idParam struct {
	ID string `validate:"required,resortid"`
}

func resortID(c *fiber.Ctx) (string, error) {
	p := idParam{ID: c.Params("id")}
	if err := validate.Struct(p); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid resort id")
	}
	return p.ID, nil
}

func lookupError(err error) error {
	if errors.Is(err, resort.ErrUnknownResort) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
