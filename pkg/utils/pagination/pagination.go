package pagination

import (
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

type Type string

const (
	TypeNone   Type = "none"
	TypePage   Type = "page"
	TypeOffset Type = "offset"
	TypeCursor Type = "cursor"
)

const DefaultMaxPages = 10

// Config describes how a paginated API expects its paging parameters. Param
// names default to page, limit, offset and cursor.
type Config struct {
	Type        Type   `json:"type"`
	PageParam   string `json:"pageParam"`
	LimitParam  string `json:"limitParam"`
	OffsetParam string `json:"offsetParam"`
	CursorParam string `json:"cursorParam"`
	CursorPath  string `json:"cursorPath"`
	HasMorePath string `json:"hasMorePath"`
	PageSize    int    `json:"pageSize"`
	StartPage   *int   `json:"startPage"`
	MaxPages    int    `json:"maxPages"`
}

// Page is what the caller observed for one fetched page. Items is the number
// of records extracted from it, or -1 when the payload was not a list.
type Page struct {
	Body  any
	Items int
}

// Handler produces query parameters for the next request and decides whether
// another page exists after each response.
type Handler interface {
	GetType() Type

	BuildRequestParams() map[string]string

	Advance(page Page) (bool, error)
}

type PageHandler struct {
	PageParam  string
	LimitParam string
	PageSize   int
	page       int
}

func NewPageHandler(config Config) *PageHandler {
	start := 1
	if config.StartPage != nil {
		start = *config.StartPage
	}

	return &PageHandler{
		PageParam:  valueOr(config.PageParam, "page"),
		LimitParam: valueOr(config.LimitParam, "limit"),
		PageSize:   config.PageSize,
		page:       start,
	}
}

func (h *PageHandler) GetType() Type {
	return TypePage
}

func (h *PageHandler) BuildRequestParams() map[string]string {
	params := map[string]string{
		h.PageParam: strconv.Itoa(h.page),
	}

	if h.PageSize > 0 {
		params[h.LimitParam] = strconv.Itoa(h.PageSize)
	}

	return params
}

func (h *PageHandler) Advance(page Page) (bool, error) {
	if !hasMoreItems(page.Items, h.PageSize) {
		return false, nil
	}

	h.page++

	return true, nil
}

type OffsetHandler struct {
	OffsetParam string
	LimitParam  string
	Limit       int
	offset      int
}

func NewOffsetHandler(config Config) *OffsetHandler {
	return &OffsetHandler{
		OffsetParam: valueOr(config.OffsetParam, "offset"),
		LimitParam:  valueOr(config.LimitParam, "limit"),
		Limit:       config.PageSize,
	}
}

func (h *OffsetHandler) GetType() Type {
	return TypeOffset
}

func (h *OffsetHandler) BuildRequestParams() map[string]string {
	params := map[string]string{
		h.OffsetParam: strconv.Itoa(h.offset),
	}

	if h.Limit > 0 {
		params[h.LimitParam] = strconv.Itoa(h.Limit)
	}

	return params
}

type offsetResponse struct {
	TotalCount int `json:"total_count"`
	Total      int `json:"total"`
}

func (h *OffsetHandler) Advance(page Page) (bool, error) {
	if !hasMoreItems(page.Items, h.Limit) {
		return false, nil
	}

	step := page.Items
	if step <= 0 {
		step = h.Limit
	}
	if step <= 0 {
		return false, fmt.Errorf("offset pagination needs a pageSize when the response is not a list")
	}

	h.offset += step

	var resp offsetResponse
	if m, ok := page.Body.(map[string]any); ok {
		resp.TotalCount = cast.ToInt(m["total_count"])
		resp.Total = cast.ToInt(m["total"])
	}

	total := resp.TotalCount
	if total == 0 {
		total = resp.Total
	}
	if total > 0 && h.offset >= total {
		return false, nil
	}

	return true, nil
}

type CursorHandler struct {
	CursorParam string
	LimitParam  string
	CursorPath  string
	HasMorePath string
	Limit       int
	cursor      string
}

func NewCursorHandler(config Config) *CursorHandler {
	return &CursorHandler{
		CursorParam: valueOr(config.CursorParam, "cursor"),
		LimitParam:  valueOr(config.LimitParam, "limit"),
		CursorPath:  config.CursorPath,
		HasMorePath: config.HasMorePath,
		Limit:       config.PageSize,
	}
}

func (h *CursorHandler) GetType() Type {
	return TypeCursor
}

func (h *CursorHandler) BuildRequestParams() map[string]string {
	params := map[string]string{}

	if h.cursor != "" {
		params[h.CursorParam] = h.cursor
	}

	if h.Limit > 0 {
		params[h.LimitParam] = strconv.Itoa(h.Limit)
	}

	return params
}

var cursorFields = []string{"next_cursor", "nextCursor", "cursor", "end_cursor", "nextPageToken", "next_page_token"}

func (h *CursorHandler) Advance(page Page) (bool, error) {
	next := ""
	if h.CursorPath != "" {
		if value, ok := expressions.Lookup(page.Body, h.CursorPath); ok && value != nil {
			next = expressions.ToString(value)
		}
	} else if m, ok := page.Body.(map[string]any); ok {
		for _, field := range cursorFields {
			if value, ok := m[field]; ok && value != nil && expressions.ToString(value) != "" {
				next = expressions.ToString(value)
				break
			}
		}
	}

	if h.HasMorePath != "" {
		value, ok := expressions.Lookup(page.Body, h.HasMorePath)
		if !ok || !expressions.Truthy(value) {
			return false, nil
		}
	}

	if next == "" || next == h.cursor || page.Items == 0 {
		return false, nil
	}

	h.cursor = next

	return true, nil
}

func NewHandler(config Config) (Handler, error) {
	switch config.Type {
	case TypePage:
		return NewPageHandler(config), nil

	case TypeOffset:
		return NewOffsetHandler(config), nil

	case TypeCursor:
		return NewCursorHandler(config), nil

	case TypeNone, "":
		return nil, fmt.Errorf("pagination type 'none' does not require a handler")

	default:
		return nil, fmt.Errorf("unknown pagination type: %s", config.Type)
	}
}

func hasMoreItems(items, pageSize int) bool {
	if items == 0 {
		return false
	}

	if items > 0 && pageSize > 0 && items < pageSize {
		return false
	}

	return true
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
