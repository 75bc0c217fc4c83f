package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/middleware/validation"
	"github.com/campus-card/backend/internal/storage/models"
	"github.com/campus-card/backend/internal/storage/sqlite"
	"github.com/campus-card/backend/pkg/logger"
)

const (
	ownerContactMessage  = "您的校园卡已被拾到，请自行联系拾卡者"
	ownerDropOffMessage  = "您的校园卡已放置在%s，请前往领取"
	ownerNotFoundMessage = "尚未找到您的校园卡，请多关注公示信息"

	// Owners are not registered, so listings show a placeholder name.
	placeholderOwner = "持卡人"
)

// Pickup desks a finder may choose when dropping a card off.
var dropOffPoints = map[string]bool{
	"图书馆": true,
	"梧桐苑": true,
	"康桥苑": true,
	"中一楼": true,
}

type CardStore interface {
	UpsertFoundCard(ctx context.Context, card *models.Card) (int64, error)
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	FindRecentFoundCard(ctx context.Context, studentID string) (*models.Card, error)
	MarkMatched(ctx context.Context, id int64) error
	UnmatchedCards(ctx context.Context) ([]models.Card, error)
	HotLocations(ctx context.Context) (*models.HotLocations, error)
}

type RefinementScheduler interface {
	Schedule(cardID int64, rawText string) bool
}

type CardHandler struct {
	store     CardStore
	scheduler RefinementScheduler
}

func NewCardHandler(store CardStore, scheduler RefinementScheduler) *CardHandler {
	return &CardHandler{
		store:     store,
		scheduler: scheduler,
	}
}

// ReportFound handles POST /cards. The card is stored with its raw location
// and refinement runs after the response.
func (h *CardHandler) ReportFound(c *fiber.Ctx) error {
	var req struct {
		CardNumber    string `json:"card_number"`
		FoundLocation string `json:"found_location"`
		HandlerOption int    `json:"handler_option"`
		Contact       string `json:"contact"`
		PhotoURL      string `json:"photo_url"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	card := &models.Card{
		CardNumber:    validation.Sanitize(req.CardNumber),
		FoundLocation: validation.Sanitize(req.FoundLocation),
		HandlerOption: req.HandlerOption,
		Contact:       validation.Sanitize(req.Contact),
		PhotoURL:      req.PhotoURL,
	}
	// Card numbers are student numbers.
	card.StudentID = card.CardNumber

	if msg := validateCard(card); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	id, err := h.store.UpsertFoundCard(c.UserContext(), card)
	if err != nil {
		logger.Error("Failed to record card", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record card",
		})
	}

	scheduled := false
	if card.FoundLocation != "" {
		scheduled = h.scheduler.Schedule(id, card.FoundLocation)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                   id,
		"message":              "Card reported successfully",
		"refinement_scheduled": scheduled,
	})
}

func validateCard(card *models.Card) string {
	if card.CardNumber == "" {
		return "card_number is required"
	}

	switch card.HandlerOption {
	case models.HandlerSelfContact:
		if card.Contact == "" {
			return "Contact information is required for self-contact option"
		}
	case models.HandlerDropOff:
		if card.Contact == "" {
			return "Pickup location is required for location placement option"
		}
		if !dropOffPoints[card.Contact] {
			return "Invalid pickup location"
		}
	default:
		return "handler_option must be 1 or 2"
	}

	return ""
}

// GetCard handles GET /cards/:id.
func (h *CardHandler) GetCard(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid card id",
		})
	}

	card, err := h.store.GetCard(c.UserContext(), id)
	if errors.Is(err, sqlite.ErrCardNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Card not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get card", zap.Int64("card_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get card",
		})
	}

	return c.JSON(card)
}

// HotLocations handles GET /locations/hot.
func (h *CardHandler) HotLocations(c *fiber.Ctx) error {
	hot, err := h.store.HotLocations(c.UserContext())
	if err != nil {
		logger.Error("Failed to compute hot locations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute hot locations",
		})
	}

	return c.JSON(hot)
}

type maskedInfo struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

type unmatchedCard struct {
	ID            int64      `json:"card_id"`
	Masked        maskedInfo `json:"masked_info"`
	FoundTime     string     `json:"found_time"`
	FoundLocation string     `json:"found_location"`
	HandlerOption int        `json:"handler_option"`
	HandlerText   string     `json:"handler_text"`
	ContactInfo   string     `json:"contact_info"`
}

// QueryLostCard handles GET /cards?student_id=.. for owners looking for
// their card. A hit tells the owner how to get it back and marks the card
// matched; a miss lists the unclaimed cards instead.
func (h *CardHandler) QueryLostCard(c *fiber.Ctx) error {
	studentID := validation.Sanitize(c.Query("student_id"))
	if studentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing student ID",
		})
	}

	ctx := c.UserContext()
	card, err := h.store.FindRecentFoundCard(ctx, studentID)
	if errors.Is(err, sqlite.ErrCardNotFound) {
		return h.notFound(c)
	}
	if err != nil {
		logger.Error("Failed to look up card", zap.String("student_id", studentID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up card",
		})
	}

	if !card.IsMatched {
		if err := h.store.MarkMatched(ctx, card.ID); err != nil {
			logger.Warn("Failed to mark card matched", zap.Int64("card_id", card.ID), zap.Error(err))
		}
	}

	resp := fiber.Map{
		"status":     "found",
		"card_id":    card.ID,
		"student_id": card.StudentID,
	}
	if card.HandlerOption == models.HandlerSelfContact {
		resp["message"] = ownerContactMessage
		resp["handler_type"] = "contact"
		resp["contact_info"] = card.Contact
	} else {
		resp["message"] = fmt.Sprintf(ownerDropOffMessage, card.Contact)
		resp["handler_type"] = "location"
		resp["location_info"] = card.Contact
	}

	return c.JSON(resp)
}

func (h *CardHandler) notFound(c *fiber.Ctx) error {
	cards, err := h.store.UnmatchedCards(c.UserContext())
	if err != nil {
		logger.Error("Failed to list unmatched cards", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up card",
		})
	}

	listed := make([]unmatchedCard, 0, len(cards))
	for _, card := range cards {
		listed = append(listed, describeUnmatched(card))
	}

	return c.JSON(fiber.Map{
		"status":          "not_found",
		"message":         ownerNotFoundMessage,
		"unmatched_cards": listed,
	})
}

func describeUnmatched(card models.Card) unmatchedCard {
	out := unmatchedCard{
		ID:            card.ID,
		Masked:        maskedInfo{Name: maskName(placeholderOwner), StudentID: maskStudentID(card.StudentID)},
		FoundLocation: card.FoundLocation,
		HandlerOption: card.HandlerOption,
	}
	if card.FoundTime != nil {
		out.FoundTime = card.FoundTime.Format("2006-01-02 15:04")
	}

	switch card.HandlerOption {
	case models.HandlerSelfContact:
		out.HandlerText = "自行联系失主"
		out.ContactInfo = "未提供联系方式"
		if card.Contact != "" {
			out.ContactInfo = card.Contact
		}
	case models.HandlerDropOff:
		out.HandlerText = "放置到指定地点"
		out.ContactInfo = "未指定拾取点"
		if card.Contact != "" {
			out.ContactInfo = "拾取点：" + card.Contact
		}
	default:
		out.HandlerText = "未知处理方式"
		out.ContactInfo = "无信息"
	}

	return out
}

func maskName(name string) string {
	r := []rune(name)
	if len(r) <= 1 {
		return "*"
	}
	return string(r[0]) + strings.Repeat("*", len(r)-1)
}

func maskStudentID(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return "****"
	}
	return string(r[:2]) + "****" + string(r[len(r)-2:])
}
