package bookingapi

import (
	"encoding/json"
	"time"

	"github.com/merridale/bookline/internal/domain"
)

// Wire types. The backend and the local generator do not agree on field
// names, so every ingestion boundary has an explicit normalizer into the
// canonical domain records; nothing outside this file touches wire shapes.

type contactDTO struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Phone string      `json:"phone"`
}

type searchContactsResponse struct {
	Results []contactDTO `json:"results"`
}

type personDTO struct {
	UserID json.Number `json:"user_id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
}

type searchPeopleResponse struct {
	Results []personDTO `json:"results"`
}

// BookRequest is the booking payload. The backend calls the frequency field
// "interval" and the repeat count "count"; single bookings omit both.
type BookRequest struct {
	Title         string   `json:"title"`
	StartDateTime string   `json:"startDateTime"`
	EndDateTime   string   `json:"endDateTime"`
	LocationID    string   `json:"locationId"`
	ContactID     string   `json:"contactId"`
	UserIDs       []string `json:"userIds"`
	Type          string   `json:"type"` // "single" | "recurring"
	Interval      string   `json:"interval,omitempty"`
	Count         int      `json:"count,omitempty"`
}

type appointmentDTO struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	StartTime string      `json:"start_time,omitempty"` // RFC 3339
	EndTime   string      `json:"end_time,omitempty"`
	Date      string      `json:"date,omitempty"` // yyyy-mm-dd fallback
	Time      string      `json:"time,omitempty"` // HH:MM fallback
	ContactID json.Number `json:"contact_id,omitempty"`
	Status    string      `json:"status,omitempty"`
	GroupID   json.Number `json:"group_id,omitempty"`
	Frequency string      `json:"frequency,omitempty"`
	Interval  int         `json:"interval,omitempty"`
	Count     int         `json:"count,omitempty"`
	Users     []personDTO `json:"users,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
}

type bookResponse struct {
	Appointments []appointmentDTO `json:"appointments"`
}

type groupDTO struct {
	ID                json.Number `json:"id"`
	Title             string      `json:"title"`
	Frequency         string      `json:"frequency"`
	Interval          int         `json:"interval"`
	Count             int         `json:"count"`
	AppointmentsCount int         `json:"appointments_count"`
	IsActive          bool        `json:"is_active"`
	Users             []personDTO `json:"users,omitempty"`
	CreatedAt         string      `json:"created_at,omitempty"`
	UpdatedAt         string      `json:"updated_at,omitempty"`
}

type listGroupsResponse struct {
	Results []groupDTO `json:"results"`
}

type groupAppointmentsResponse struct {
	Count   int              `json:"count"`
	Results []appointmentDTO `json:"results"`
}

// DeleteResult is returned by the single-appointment delete endpoint: the
// backend id plus the external provider's id for the removed event.
type DeleteResult struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
}

type userDTO struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	ExternalID string      `json:"ghl_id"`
	CalendarID *string     `json:"calendar_id"`
	CreatedAt  string      `json:"created_at,omitempty"`
}

type calendarStatsResponse struct {
	Stats struct {
		AllUsers []userDTO `json:"all_users"`
	} `json:"stats"`
}

type updateCalendarRequest struct {
	CalendarID string `json:"calendar_id"`
}

type updateCalendarResponse struct {
	UserID     json.Number `json:"user_id"`
	CalendarID string      `json:"calendar_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type errorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Normalizers ------------------------------------------------------------

func (d contactDTO) toDomain() domain.Contact {
	return domain.Contact{
		ID:    d.ID.String(),
		Name:  d.Name,
		Email: d.Email,
		Phone: d.Phone,
	}
}

func (d personDTO) toDomain() domain.Person {
	return domain.Person{
		UserID: d.UserID.String(),
		Name:   d.Name,
		Email:  d.Email,
	}
}

func (d appointmentDTO) toDomain() domain.Appointment {
	a := domain.Appointment{
		ID:        d.ID.String(),
		Title:     d.Title,
		Date:      d.Date,
		TimeOfDay: d.Time,
		Status:    domain.Status(d.Status),
	}
	if d.ContactID != "" {
		a.ContactID = d.ContactID.String()
	}
	if a.Status == "" {
		a.Status = domain.StatusScheduled
	}
	if t, err := time.Parse(time.RFC3339, d.StartTime); err == nil {
		a.StartAt = t
		if a.Date == "" {
			a.Date = t.Format("2006-01-02")
		}
		if a.TimeOfDay == "" {
			a.TimeOfDay = t.Format("15:04")
		}
	}
	if t, err := time.Parse(time.RFC3339, d.EndTime); err == nil {
		a.EndAt = t
	} else if !a.StartAt.IsZero() {
		a.EndAt = a.StartAt.Add(domain.DefaultDuration)
	}
	if gid := d.GroupID.String(); gid != "" {
		a.RecurringID = gid
		if d.Frequency != "" {
			a.Pattern = &domain.RecurrencePattern{
				Frequency: domain.Frequency(d.Frequency),
				Interval:  max(d.Interval, 1),
				Count:     d.Count,
			}
		}
	}
	for _, u := range d.Users {
		a.Assignees = append(a.Assignees, u.toDomain())
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		a.CreatedAt = t
	}
	return a
}

func (d groupDTO) toDomain() domain.RecurringGroup {
	g := domain.RecurringGroup{
		ID:    d.ID.String(),
		Title: d.Title,
		Pattern: domain.RecurrencePattern{
			Frequency: domain.Frequency(d.Frequency),
			Interval:  max(d.Interval, 1),
			Count:     d.Count,
		},
		Active:            d.IsActive,
		AppointmentsCount: d.AppointmentsCount,
	}
	for _, u := range d.Users {
		g.Assignees = append(g.Assignees, u.toDomain())
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		g.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, d.UpdatedAt); err == nil {
		g.UpdatedAt = t
	}
	return g
}

func (d userDTO) toDomain() domain.User {
	u := domain.User{
		ID:         d.ID.String(),
		Name:       d.Name,
		Email:      d.Email,
		Phone:      d.Phone,
		ExternalID: d.ExternalID,
	}
	if d.CalendarID != nil && *d.CalendarID != "" {
		id := *d.CalendarID
		u.CalendarID = &id
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		u.CreatedAt = t
	}
	return u
}

// NewBookRequest maps a validated booking into the wire payload. start must
// already be in the business timezone; it is serialized as UTC.
func NewBookRequest(title string, start time.Time, locationID, contactID string, assignees []domain.Person, pattern *domain.RecurrencePattern) BookRequest {
	req := BookRequest{
		Title:         title,
		StartDateTime: start.UTC().Format(time.RFC3339),
		EndDateTime:   start.Add(domain.DefaultDuration).UTC().Format(time.RFC3339),
		LocationID:    locationID,
		ContactID:     contactID,
		Type:          "single",
	}
	for _, p := range assignees {
		req.UserIDs = append(req.UserIDs, p.UserID)
	}
	if pattern != nil {
		req.Type = "recurring"
		req.Interval = string(pattern.Frequency)
		req.Count = pattern.Count
	}
	return req
}
