package holidays

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HEBCAL - Remote provider of candle-lighting times and Yom Tov dates
// =============================================================================

const DefaultHebcalURL = "https://www.hebcal.com/hebcal"

// Hebcal queries the Hebcal JSON API. Each lookup fetches a three-day range
// around the date, which covers both ends of the weekend's Sabbath.
type Hebcal struct {
	baseURL    string
	geonameID  int
	location   *time.Location
	httpClient *http.Client
}

type HebcalOption func(*Hebcal)

func WithBaseURL(u string) HebcalOption {
	return func(h *Hebcal) { h.baseURL = u }
}

func WithHTTPClient(c *http.Client) HebcalOption {
	return func(h *Hebcal) { h.httpClient = c }
}

// NewHebcal creates a client for the city identified by geonameID. Facts are
// reported in loc.
func NewHebcal(geonameID int, loc *time.Location, opts ...HebcalOption) *Hebcal {
	h := &Hebcal{
		baseURL:    DefaultHebcalURL,
		geonameID:  geonameID,
		location:   loc,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.location == nil {
		h.location = time.UTC
	}
	return h
}

type hebcalResponse struct {
	Items []hebcalItem `json:"items"`
}

type hebcalItem struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Yomtov   bool   `json:"yomtov"`
}

func (h *Hebcal) Lookup(ctx context.Context, date time.Time) (payroll.HolidayFact, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, h.location)

	items, err := h.fetch(ctx, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		return payroll.HolidayFact{}, fmt.Errorf("%w: hebcal %s: %v", payroll.ErrHolidayLookupUnavailable, payroll.DateKey(day), err)
	}
	return h.factFor(day, items), nil
}

func (h *Hebcal) fetch(ctx context.Context, from, to time.Time) ([]hebcalItem, error) {
	q := url.Values{}
	q.Set("v", "1")
	q.Set("cfg", "json")
	q.Set("maj", "on")
	q.Set("min", "off")
	q.Set("mod", "off")
	q.Set("nx", "off")
	q.Set("ss", "off")
	q.Set("mf", "off")
	q.Set("c", "on")
	q.Set("M", "on")
	q.Set("geo", "geoname")
	q.Set("geonameid", strconv.Itoa(h.geonameID))
	q.Set("start", payroll.DateKey(from))
	q.Set("end", payroll.DateKey(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body hebcalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Items, nil
}

// factFor builds the fact for day from the items of the surrounding range.
// Candle lighting is taken from the weekend's Friday and Havdalah from its
// Saturday; candle lighting on the eve of a weekday Yom Tov is ignored.
func (h *Hebcal) factFor(day time.Time, items []hebcalItem) payroll.HolidayFact {
	fact := payroll.HolidayFact{Date: day}

	var friday, saturday time.Time
	switch day.Weekday() {
	case time.Friday:
		friday, saturday = day, day.AddDate(0, 0, 1)
		fact.IsSabbath = true
	case time.Saturday:
		friday, saturday = day.AddDate(0, 0, -1), day
		fact.IsSabbath = true
	}

	for _, it := range items {
		switch it.Category {
		case "holiday":
			if it.Yomtov && it.Date == payroll.DateKey(day) {
				fact.IsPaidHoliday = true
				fact.Name = it.Title
			}
		case "candles":
			t, err := time.Parse(time.RFC3339, it.Date)
			if err == nil && fact.IsSabbath && sameDate(t.In(h.location), friday) {
				fact.SabbathStart = t.In(h.location)
			}
		case "havdalah":
			t, err := time.Parse(time.RFC3339, it.Date)
			if err == nil && fact.IsSabbath && sameDate(t.In(h.location), saturday) {
				fact.SabbathEnd = t.In(h.location)
			}
		}
	}
	return fact
}

func sameDate(a, b time.Time) bool {
	return payroll.DateKey(a) == payroll.DateKey(b)
}
