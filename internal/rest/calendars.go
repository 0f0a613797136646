package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const serviceCalendars = "calendars"

// CalendarsAPI talks to the calendars service: calendar collections and the
// calendar objects inside them.
type CalendarsAPI struct {
	client *Client
}

// NewCalendarsAPI -.
func NewCalendarsAPI(client *Client) *CalendarsAPI {
	return &CalendarsAPI{client: client}
}

// GetCalendars lists the calendars visible to the calling user.
func (a *CalendarsAPI) GetCalendars(ctx context.Context, cfg Config) ([]Calendar, error) {
	var items []Calendar
	err := a.client.do(ctx, cfg, serviceCalendars, "getCalendars",
		http.MethodGet, "/calendars", nil, nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddCalendar creates a calendar and returns it with the backend-assigned uid.
func (a *CalendarsAPI) AddCalendar(ctx context.Context, cfg Config, item *CalendarNew) (*Calendar, error) {
	var created Calendar
	err := a.client.do(ctx, cfg, serviceCalendars, "addCalendar",
		http.MethodPost, "/calendars", nil, item, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCalendar -.
func (a *CalendarsAPI) UpdateCalendar(ctx context.Context, cfg Config, calendarUID string, item *CalendarUpdate) error {
	return a.client.do(ctx, cfg, serviceCalendars, "updateCalendar",
		http.MethodPut, "/calendars/"+url.PathEscape(calendarUID), nil, item, nil)
}

// DeleteCalendar -.
func (a *CalendarsAPI) DeleteCalendar(ctx context.Context, cfg Config, calendarUID string) error {
	return a.client.do(ctx, cfg, serviceCalendars, "deleteCalendar",
		http.MethodDelete, "/calendars/"+url.PathEscape(calendarUID), nil, nil, nil)
}

// GetCalObjects lists objects of one calendar, payload included. With
// hrefs the listing is scoped to exactly those objects; without, the whole
// collection is returned.
func (a *CalendarsAPI) GetCalObjects(ctx context.Context, cfg Config, calendarUID string, hrefs []string) ([]CalObject, error) {
	query := url.Values{}
	for _, href := range hrefs {
		query.Add("href", href)
	}
	var items []CalObject
	err := a.client.do(ctx, cfg, serviceCalendars, "getCalObjects",
		http.MethodGet, "/calendars/"+url.PathEscape(calendarUID)+"/objects", query, nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddCalObject -.
func (a *CalendarsAPI) AddCalObject(ctx context.Context, cfg Config, calendarUID string, item *CalObjectNew) error {
	return a.client.do(ctx, cfg, serviceCalendars, "addCalObject",
		http.MethodPost, "/calendars/"+url.PathEscape(calendarUID)+"/objects", nil, item, nil)
}

// UpdateCalObject -.
func (a *CalendarsAPI) UpdateCalObject(ctx context.Context, cfg Config, calendarUID, href, icalendar string) error {
	return a.client.do(ctx, cfg, serviceCalendars, "updateCalObject",
		http.MethodPut, "/calendars/"+url.PathEscape(calendarUID)+"/objects/"+url.PathEscape(href),
		nil, &CalObjectNew{Href: href, Icalendar: icalendar}, nil)
}

// DeleteCalObject -.
func (a *CalendarsAPI) DeleteCalObject(ctx context.Context, cfg Config, calendarUID, href string) error {
	return a.client.do(ctx, cfg, serviceCalendars, "deleteCalObject",
		http.MethodDelete, "/calendars/"+url.PathEscape(calendarUID)+"/objects/"+url.PathEscape(href),
		nil, nil, nil)
}

// GetCalObjectsChanges reports changes since syncToken; an empty token asks
// for the full history (initial sync). The token goes out verbatim.
func (a *CalendarsAPI) GetCalObjectsChanges(ctx context.Context, cfg Config, calendarUID, syncToken string, limit int) (*ObjectsChanges, error) {
	query := url.Values{}
	if syncToken != "" {
		query.Set("syncToken", syncToken)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var changes ObjectsChanges
	err := a.client.do(ctx, cfg, serviceCalendars, "getCalObjectsChanges",
		http.MethodGet, "/calendars/"+url.PathEscape(calendarUID)+"/changes", query, nil, &changes)
	if err != nil {
		return nil, err
	}
	return &changes, nil
}
