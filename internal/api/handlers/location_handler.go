package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/facility"
	"github.com/campus-card/backend/internal/gazetteer"
	"github.com/campus-card/backend/internal/location"
	"github.com/campus-card/backend/internal/middleware/validation"
	"github.com/campus-card/backend/pkg/logger"
	"github.com/campus-card/backend/pkg/utils"
)

const (
	markerColorQuery   = "#000000"
	markerColorNearest = "#dc3545"

	quickAdvice       = "最近的招领点是%s，距离约%.1f个单位。"
	noFacilityAdvice  = "抱歉，暂未找到距离%s最近的招领点信息。"
	unrecognizedInput = "抱歉，无法识别您输入中的校园地点。请尝试输入更具体的地点名称。"
)

type Resolver interface {
	Resolve(ctx context.Context, text string, mode location.Mode) location.Result
}

type Places interface {
	FindByName(name string) (gazetteer.Record, bool)
	Lookup(key string) (gazetteer.Record, bool)
}

type NearestFinder interface {
	Nearest(locationName, category string) (facility.Nearest, bool)
}

type Advisor interface {
	Advise(ctx context.Context, location string, nearest facility.Nearest) string
}

type LocationHandler struct {
	resolver Resolver
	places   Places
	finder   NearestFinder
	advisor  Advisor
}

func NewLocationHandler(resolver Resolver, places Places, finder NearestFinder, advisor Advisor) *LocationHandler {
	return &LocationHandler{
		resolver: resolver,
		places:   places,
		finder:   finder,
		advisor:  advisor,
	}
}

type coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type nearestPoint struct {
	Name        string      `json:"name"`
	Distance    float64     `json:"distance"`
	Coordinates coordinates `json:"coordinates"`
}

type smartQueryResult struct {
	Location        string        `json:"location"`
	Coordinates     *coordinates  `json:"coordinates"`
	NearestFacility *nearestPoint `json:"nearest_lost_and_found"`
	Advice          string        `json:"ai_advice"`
	AdviceLoading   bool          `json:"ai_advice_loading,omitempty"`
}

type mapMarker struct {
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Distance *float64 `json:"distance,omitempty"`
	Color    string   `json:"color"`
	Shape    string   `json:"shape"`
}

// Resolve handles POST /locations/resolve.
func (h *LocationHandler) Resolve(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	mode, err := location.ParseMode(req.Mode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	res := h.resolver.Resolve(c.UserContext(), validation.Sanitize(req.Text), mode)
	return c.JSON(res)
}

// SmartQuery handles POST /locations/smart-query. It resolves every place in
// the input and pairs each with its nearest lost-and-found point.
func (h *LocationHandler) SmartQuery(c *fiber.Ctx) error {
	var req struct {
		UserInput string `json:"user_input"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	input := validation.Sanitize(req.UserInput)
	if input == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "请输入查询内容",
		})
	}

	parsed := h.resolver.Resolve(c.UserContext(), input, location.ModeRanked)
	if len(parsed.Locations) == 0 {
		return c.JSON(fiber.Map{
			"success":        false,
			"message":        unrecognizedInput,
			"parsing_result": parsed,
		})
	}

	results := make([]smartQueryResult, 0, len(parsed.Locations))
	markers := make([]mapMarker, 0, 2*len(parsed.Locations))

	for _, name := range parsed.Locations {
		result := smartQueryResult{Location: name}

		if rec, ok := h.places.FindByName(name); ok {
			result.Coordinates = &coordinates{X: rec.X, Y: rec.Y}
			markers = append(markers, mapMarker{
				Type:  "query_location",
				Name:  name,
				X:     rec.X,
				Y:     rec.Y,
				Color: markerColorQuery,
				Shape: "square",
			})
		}

		nearest, ok := h.finder.Nearest(name, gazetteer.CategoryLostAndFound)
		if !ok {
			result.Advice = fmt.Sprintf(noFacilityAdvice, name)
			results = append(results, result)
			continue
		}

		distance := utils.Round1(nearest.Distance)
		markers = append(markers, mapMarker{
			Type:     "nearest_point",
			Name:     nearest.Name,
			X:        nearest.X,
			Y:        nearest.Y,
			Distance: &distance,
			Color:    markerColorNearest,
			Shape:    "circle",
		})

		result.NearestFacility = &nearestPoint{
			Name:        nearest.Name,
			Distance:    distance,
			Coordinates: coordinates{X: nearest.X, Y: nearest.Y},
		}
		result.Advice = fmt.Sprintf(quickAdvice, nearest.Name, nearest.Distance)
		result.AdviceLoading = true
		results = append(results, result)
	}

	logger.Info("Smart location query completed",
		zap.String("input", input),
		zap.Strings("locations", parsed.Locations),
		zap.String("source", string(parsed.Source)),
	)

	return c.JSON(fiber.Map{
		"success":        true,
		"message":        fmt.Sprintf("成功识别到%d个地点", len(results)),
		"parsing_result": parsed,
		"results":        results,
		"map_data": fiber.Map{
			"markers": markers,
		},
	})
}

// Advice handles POST /locations/advice.
func (h *LocationHandler) Advice(c *fiber.Ctx) error {
	var req struct {
		LocationName string        `json:"location_name"`
		NearestPoint *nearestPoint `json:"nearest_point"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	name := validation.Sanitize(req.LocationName)
	if name == "" || req.NearestPoint == nil || req.NearestPoint.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "location_name and nearest_point are required",
		})
	}

	advice := h.advisor.Advise(c.UserContext(), name, facility.Nearest{
		Name:     req.NearestPoint.Name,
		X:        req.NearestPoint.Coordinates.X,
		Y:        req.NearestPoint.Coordinates.Y,
		Distance: req.NearestPoint.Distance,
	})

	return c.JSON(fiber.Map{
		"success":   true,
		"location":  name,
		"ai_advice": advice,
	})
}

// Nearest handles GET /locations/nearest?name=..&category=.. The name may
// also be a gazetteer key such as south_gate.
func (h *LocationHandler) Nearest(c *fiber.Ctx) error {
	name := validation.Sanitize(c.Query("name"))
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	if _, ok := h.places.FindByName(name); !ok {
		if rec, ok := h.places.Lookup(name); ok {
			name = rec.Name
		}
	}
	category := c.Query("category", gazetteer.CategoryLostAndFound)

	nearest, ok := h.finder.Nearest(name, category)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no facility found for location",
		})
	}

	return c.JSON(fiber.Map{
		"location": name,
		"category": category,
		"nearest":  nearest,
	})
}
