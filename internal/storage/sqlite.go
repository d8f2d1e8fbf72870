package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/merridale/bookline/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the local sqlite layer: it persists the session token pair
// across restarts and caches appointments, groups and users so the agent
// can render a roster and schedule while the backend is unreachable.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			start_at DATETIME,
			end_at DATETIME,
			date TEXT DEFAULT '',
			time_of_day TEXT DEFAULT '',
			contact_id TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'scheduled',
			recurring_id TEXT DEFAULT '',
			frequency TEXT DEFAULT '',
			interval INTEGER DEFAULT 0,
			repeat_count INTEGER DEFAULT 0,
			assignees TEXT DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_recurring ON appointments(recurring_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_start ON appointments(start_at)`,
		`CREATE TABLE IF NOT EXISTS recurring_groups (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			frequency TEXT NOT NULL,
			interval INTEGER NOT NULL DEFAULT 1,
			repeat_count INTEGER NOT NULL DEFAULT 0,
			appointments_count INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			assignees TEXT DEFAULT '[]',
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT DEFAULT '',
			phone TEXT DEFAULT '',
			external_id TEXT DEFAULT '',
			calendar_id TEXT,
			created_at DATETIME
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Session tokens ===

func (s *Storage) SaveTokens(access, refresh string) error {
	_, err := s.db.Exec(`INSERT INTO session (id, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = CURRENT_TIMESTAMP`, access, refresh)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (s *Storage) LoadTokens() (access, refresh string, err error) {
	err = s.db.QueryRow(`SELECT access_token, refresh_token FROM session WHERE id = 1`).
		Scan(&access, &refresh)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("load tokens: %w", err)
	}
	return access, refresh, nil
}

func (s *Storage) ClearTokens() error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// === Appointments ===

func (s *Storage) UpsertAppointments(appts []domain.Appointment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO appointments
		(id, title, start_at, end_at, date, time_of_day, contact_id, status,
		 recurring_id, frequency, interval, repeat_count, assignees, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			date = excluded.date,
			time_of_day = excluded.time_of_day,
			contact_id = excluded.contact_id,
			status = excluded.status,
			recurring_id = excluded.recurring_id,
			frequency = excluded.frequency,
			interval = excluded.interval,
			repeat_count = excluded.repeat_count,
			assignees = excluded.assignees`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range appts {
		assignees, err := json.Marshal(a.Assignees)
		if err != nil {
			return fmt.Errorf("marshal assignees: %w", err)
		}
		var freq string
		var interval, count int
		if a.Pattern != nil {
			freq = string(a.Pattern.Frequency)
			interval = a.Pattern.Interval
			count = a.Pattern.Count
		}
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err = stmt.Exec(a.ID, a.Title, nullTime(a.StartAt), nullTime(a.EndAt),
			a.Date, a.TimeOfDay, a.ContactID, string(a.Status),
			a.RecurringID, freq, interval, count, string(assignees), createdAt)
		if err != nil {
			return fmt.Errorf("upsert appointment %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Storage) ListAppointments() ([]domain.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, title, start_at, end_at, date, time_of_day,
		contact_id, status, recurring_id, frequency, interval, repeat_count,
		assignees, created_at
		FROM appointments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *Storage) DeleteAppointment(id string) error {
	if _, err := s.db.Exec(`DELETE FROM appointments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete appointment %s: %w", id, err)
	}
	return nil
}

func (s *Storage) DeleteSeries(recurringID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM appointments WHERE recurring_id = ?`, recurringID); err != nil {
		return fmt.Errorf("delete series appointments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM recurring_groups WHERE id = ?`, recurringID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanAppointment(rows *sql.Rows) (domain.Appointment, error) {
	var a domain.Appointment
	var startAt, endAt, createdAt sql.NullTime
	var status, freq, assignees string
	var interval, count int

	err := rows.Scan(&a.ID, &a.Title, &startAt, &endAt, &a.Date, &a.TimeOfDay,
		&a.ContactID, &status, &a.RecurringID, &freq, &interval, &count,
		&assignees, &createdAt)
	if err != nil {
		return a, fmt.Errorf("scan appointment: %w", err)
	}

	a.Status = domain.Status(status)
	if startAt.Valid {
		a.StartAt = startAt.Time
	}
	if endAt.Valid {
		a.EndAt = endAt.Time
	}
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	if freq != "" {
		a.Pattern = &domain.RecurrencePattern{
			Frequency: domain.Frequency(freq),
			Interval:  interval,
			Count:     count,
		}
	}
	if err := json.Unmarshal([]byte(assignees), &a.Assignees); err != nil {
		return a, fmt.Errorf("unmarshal assignees: %w", err)
	}
	return a, nil
}

// === Recurring groups ===

func (s *Storage) ReplaceGroups(groups []domain.RecurringGroup) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM recurring_groups`); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}

	for _, g := range groups {
		assignees, err := json.Marshal(g.Assignees)
		if err != nil {
			return fmt.Errorf("marshal assignees: %w", err)
		}
		_, err = tx.Exec(`INSERT INTO recurring_groups
			(id, title, frequency, interval, repeat_count, appointments_count,
			 is_active, assignees, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.Title, string(g.Pattern.Frequency), g.Pattern.Interval,
			g.Pattern.Count, g.AppointmentsCount, g.Active, string(assignees),
			nullTime(g.CreatedAt), nullTime(g.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert group %s: %w", g.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Storage) ListGroups() ([]domain.RecurringGroup, error) {
	rows, err := s.db.Query(`SELECT id, title, frequency, interval, repeat_count,
		appointments_count, is_active, assignees, created_at, updated_at
		FROM recurring_groups ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.RecurringGroup
	for rows.Next() {
		var g domain.RecurringGroup
		var freq, assignees string
		var createdAt, updatedAt sql.NullTime
		err := rows.Scan(&g.ID, &g.Title, &freq, &g.Pattern.Interval,
			&g.Pattern.Count, &g.AppointmentsCount, &g.Active, &assignees,
			&createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Pattern.Frequency = domain.Frequency(freq)
		if createdAt.Valid {
			g.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			g.UpdatedAt = updatedAt.Time
		}
		if err := json.Unmarshal([]byte(assignees), &g.Assignees); err != nil {
			return nil, fmt.Errorf("unmarshal assignees: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// === Users ===

func (s *Storage) ReplaceUsers(users []domain.User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	for _, u := range users {
		var calendarID sql.NullString
		if u.CalendarID != nil {
			calendarID = sql.NullString{String: *u.CalendarID, Valid: true}
		}
		_, err := tx.Exec(`INSERT INTO users
			(id, name, email, phone, external_id, calendar_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.Phone, u.ExternalID, calendarID, nullTime(u.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert user %s: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Storage) ListUsers() ([]domain.User, error) {
	rows, err := s.db.Query(`SELECT id, name, email, phone, external_id, calendar_id, created_at
		FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var calendarID sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.ExternalID, &calendarID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if calendarID.Valid {
			id := calendarID.String
			u.CalendarID = &id
		}
		if createdAt.Valid {
			u.CreatedAt = createdAt.Time
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Storage) SetUserCalendar(userID string, calendarID *string) error {
	var val sql.NullString
	if calendarID != nil && *calendarID != "" {
		val = sql.NullString{String: *calendarID, Valid: true}
	}
	if _, err := s.db.Exec(`UPDATE users SET calendar_id = ? WHERE id = ?`, val, userID); err != nil {
		return fmt.Errorf("set user calendar: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
