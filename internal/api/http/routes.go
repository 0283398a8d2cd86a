package httpapi

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/energy-demand-features/internal/energy"
	"github.com/i474232898/energy-demand-features/internal/store"
)

var validate = validator.New()

// DatasetService is what the routes need from the pipeline.
type DatasetService interface {
	GetLatest(req energy.Request) (*energy.Dataset, error)
	BuildAndStore(ctx context.Context, req energy.Request) (*energy.Dataset, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service DatasetService) {
	v1 := app.Group("/api/v1")

	v1.Get("/datasets", func(c *fiber.Ctx) error {
		ds, err := lookupDataset(c, service)
		if err != nil {
			return err
		}
		return c.JSON(summary(ds))
	})

	v1.Get("/features", func(c *fiber.Ctx) error {
		ds, err := lookupDataset(c, service)
		if err != nil {
			return err
		}
		resp := summary(ds)
		resp["count"] = len(ds.Features)
		resp["rows"] = ds.Features
		return c.JSON(resp)
	})

	v1.Get("/merged", func(c *fiber.Ctx) error {
		ds, err := lookupDataset(c, service)
		if err != nil {
			return err
		}
		resp := summary(ds)
		resp["count"] = len(ds.Merged)
		resp["rows"] = ds.Merged
		return c.JSON(resp)
	})
}

func summary(ds *energy.Dataset) fiber.Map {
	return fiber.Map{
		"request":       ds.Request,
		"builtAt":       ds.BuiltAt,
		"mergedRows":    len(ds.Merged),
		"featureRows":   len(ds.Features),
		"droppedRows":   ds.DroppedRows,
		"failedWindows": ds.FailedWindows,
	}
}

// lookupDataset serves the cached dataset for the query, building it on a miss.
func lookupDataset(c *fiber.Ctx, service DatasetService) (*energy.Dataset, error) {
	var q datasetQuery
	if err := q.bind(c); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req, err := q.toRequest()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ds, err := service.GetLatest(req)
	if err == nil {
		return ds, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to read dataset store")
	}

	ds, err = service.BuildAndStore(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, energy.ErrNoDemandData):
			return nil, fiber.NewError(fiber.StatusBadGateway, "demand source returned no data")
		case errors.Is(err, energy.ErrWeatherGaps):
			return nil, fiber.NewError(fiber.StatusBadGateway, "weather data has gaps")
		default:
			return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to build dataset")
		}
	}
	return ds, nil
}

// datasetQuery holds query parameters identifying a dataset.
type datasetQuery struct {
	Respondent string `validate:"required,alphanum"`
	Location   string `validate:"required"`
	Start      string `validate:"required,datetime=2006-01-02"`
	End        string `validate:"required,datetime=2006-01-02"`
}

func (q *datasetQuery) bind(c *fiber.Ctx) error {
	// Respondent codes are upper case, matching the configured request keys.
	q.Respondent = strings.ToUpper(c.Query("respondent"))
	q.Location = c.Query("location")
	q.Start = c.Query("start")
	q.End = c.Query("end")

	return validate.Struct(q)
}

func (q datasetQuery) toRequest() (energy.Request, error) {
	r, err := energy.NewDateRange(q.Start, q.End)
	if err != nil {
		return energy.Request{}, err
	}
	return energy.Request{
		Respondent: q.Respondent,
		Location:   q.Location,
		Range:      r,
	}, nil
}
