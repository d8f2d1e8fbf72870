package domain

// Contact is a bookable customer returned by contact search.
type Contact struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Person is an assignable staff member returned by people search. UserID is
// the backend identifier sent back when booking.
type Person struct {
	UserID string
	Name   string
	Email  string
}
