package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

// DocumentRepository reads the notes and notices shown on the student
// dashboard. Uploading and authoring live elsewhere.
type DocumentRepository struct {
	db *sql.DB
}

var (
	_ NoteStore   = (*DocumentRepository)(nil)
	_ NoticeStore = (*DocumentRepository)(nil)
)

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) ListNotesBySemester(ctx context.Context, semester string) ([]entity.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, subject, semester, file_url, uploaded_by, created_at
		FROM notes
		WHERE semester = $1
		ORDER BY created_at DESC
	`, semester)
	if err != nil {
		return nil, errors.Wrap(err, "list notes")
	}
	defer rows.Close()

	notes := make([]entity.Note, 0)
	for rows.Next() {
		var n entity.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Subject, &n.Semester, &n.FileURL, &n.UploadedBy, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan note")
		}
		notes = append(notes, n)
	}
	return notes, errors.Wrap(rows.Err(), "list notes")
}

func (r *DocumentRepository) ListNotices(ctx context.Context) ([]entity.Notice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, body, created_at
		FROM notices
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list notices")
	}
	defer rows.Close()

	notices := make([]entity.Notice, 0)
	for rows.Next() {
		var n entity.Notice
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notice")
		}
		notices = append(notices, n)
	}
	return notices, errors.Wrap(rows.Err(), "list notices")
}
