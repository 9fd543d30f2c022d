package entity

import "time"

// Note is study material uploaded for a semester.
type Note struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject"`
	Semester   string    `json:"semester"`
	FileURL    string    `json:"file_url"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type Notice struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
