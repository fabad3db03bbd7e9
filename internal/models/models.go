package models

import "time"

// DefaultSource tags rows created through the landing page form.
const DefaultSource = "landing-7-jours-de-priere"

type Subscriber struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"first_name"`
	Email        string    `json:"email"`
	ConsentGiven bool      `json:"consent_given"`
	PDFSent      bool      `json:"pdf_sent"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}
