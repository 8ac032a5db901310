package server

import (
	"errors"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"foodgram/internal/middleware"
	"foodgram/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const maxPaginationLimit = 100

// Pagination holds the parsed page/limit query parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// parsePagination reads ?page= (1-based) and ?limit=, clamping limit to
// [1, maxPaginationLimit].
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	if defaultLimit <= 0 {
		defaultLimit = 6
	}
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	// keep the offset within a 32-bit column range
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		page = maxPage
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// newPage builds the envelope, keeping every other query parameter
// (including repeated ones such as tags) in the next/previous links.
func newPage[T any](c *fiber.Ctx, p Pagination, total int64, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	out := Page[T]{Count: total, Results: results}

	if int64(p.Offset+len(results)) < total {
		link := pageURL(c, p.Page+1)
		out.Next = &link
	}
	if p.Page > 1 {
		link := pageURL(c, p.Page-1)
		out.Previous = &link
	}
	return out
}

func pageURL(c *fiber.Ctx, page int) string {
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		query = url.Values{}
	}
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	link := c.BaseURL() + c.Path()
	if encoded := query.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return link
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "authorId" -> "author ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// parseBoolFlag reads a 1/0/true/false query flag. Absent or unrecognised
// values disable the filter.
func parseBoolFlag(c *fiber.Ctx, key string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "1", "true":
		v = true
	case "0", "false":
		v = false
	default:
		return nil
	}
	return &v
}

// mapServiceError translates service errors into HTTP responses.
func (s *Server) mapServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}

	status := fiber.StatusInternalServerError
	switch appErr.Code {
	case models.CodeValidation, models.CodeConflict:
		status = fiber.StatusBadRequest
	case models.CodeUnauthorized:
		status = fiber.StatusUnauthorized
	case models.CodeForbidden:
		status = fiber.StatusForbidden
	case models.CodeNotFound:
		status = fiber.StatusNotFound
	}

	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, appErr)
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
