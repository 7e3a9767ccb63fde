package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
)

var (
	childColumns = []string{
		"id", "institution_id", "name", dateColumn("birth_date"), "gender",
		dateColumn("admission_date"), dateColumn("discharge_date"), "created_at", "updated_at",
	}
	noteColumns  = []string{"id", "child_id", "institution_id", "author_id", "body", "created_at"}
	photoColumns = []string{"id", "child_id", "institution_id", "key", "url", "content_type", "size", "caption", "uploaded_by", "created_at"}
)

type (
	childRow struct {
		ID            string      `boil:"id"`
		InstitutionID string      `boil:"institution_id"`
		Name          string      `boil:"name"`
		BirthDate     null.String `boil:"birth_date"`
		Gender        string      `boil:"gender"`
		AdmissionDate null.String `boil:"admission_date"`
		DischargeDate null.String `boil:"discharge_date"`
		CreatedAt     time.Time   `boil:"created_at"`
		UpdatedAt     time.Time   `boil:"updated_at"`
	}

	noteRow struct {
		ID            string    `boil:"id"`
		ChildID       string    `boil:"child_id"`
		InstitutionID string    `boil:"institution_id"`
		AuthorID      string    `boil:"author_id"`
		Body          string    `boil:"body"`
		CreatedAt     time.Time `boil:"created_at"`
	}

	photoRow struct {
		ID            string    `boil:"id"`
		ChildID       string    `boil:"child_id"`
		InstitutionID string    `boil:"institution_id"`
		Key           string    `boil:"key"`
		URL           string    `boil:"url"`
		ContentType   string    `boil:"content_type"`
		Size          int64     `boil:"size"`
		Caption       string    `boil:"caption"`
		UploadedBy    string    `boil:"uploaded_by"`
		CreatedAt     time.Time `boil:"created_at"`
	}
)

func (r childRow) unboil() child.Child {
	return child.Child{
		ID:            r.ID,
		InstitutionID: r.InstitutionID,
		Name:          r.Name,
		BirthDate:     r.BirthDate,
		Gender:        r.Gender,
		AdmissionDate: r.AdmissionDate,
		DischargeDate: r.DischargeDate,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r noteRow) unboil() child.Note {
	return child.Note{
		ID:            r.ID,
		ChildID:       r.ChildID,
		InstitutionID: r.InstitutionID,
		AuthorID:      r.AuthorID,
		Body:          r.Body,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func (r photoRow) unboil() child.Photo {
	return child.Photo{
		ID:            r.ID,
		ChildID:       r.ChildID,
		InstitutionID: r.InstitutionID,
		Key:           r.Key,
		URL:           r.URL,
		ContentType:   r.ContentType,
		Size:          r.Size,
		Caption:       r.Caption,
		UploadedBy:    r.UploadedBy,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type childRepository struct {
	repository
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(exec core.DBExecutor) *childRepository {
	return &childRepository{repository{exec: exec}}
}

func (repo childRepository) CreateChild(ctx context.Context, chd child.Child, exec ...core.DBExecutor) (child.Child, error) {
	chd.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO children (id, institution_id, name, birth_date, gender, admission_date, discharge_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		chd.ID, chd.InstitutionID, chd.Name, chd.BirthDate, chd.Gender, chd.AdmissionDate, chd.DischargeDate,
		chd.CreatedAt.UTC(), chd.UpdatedAt.UTC())
	if err != nil {
		return child.Child{}, trapErr(err, nil, "inserting child")
	}
	return chd, nil
}

func (repo childRepository) GetChild(ctx context.Context, id string, exec ...core.DBExecutor) (child.Child, error) {
	if _, err := uuid.Parse(id); err != nil {
		return child.Child{}, child.ErrNotFound
	}
	var row childRow
	err := newQuery("children", qm.Select(childColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return child.Child{}, trapErr(err, child.ErrNotFound, "finding child")
	}
	return row.unboil(), nil
}

func (repo childRepository) QueryChildren(
	ctx context.Context,
	institutionID string,
	filter *child.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]child.Child, error) {
	mods := []qm.QueryMod{
		qm.Select(childColumns...),
		qm.Where("institution_id = ?", institutionID),
	}
	if filter != nil {
		if filter.Search != "" {
			mods = append(mods, qm.Where("name ILIKE ?", ilike(filter.Search)))
		}
		if filter.Sheltered != nil {
			if *filter.Sheltered {
				mods = append(mods, qm.Where("discharge_date IS NULL"))
			} else {
				mods = append(mods, qm.Where("discharge_date IS NOT NULL"))
			}
		}
	}
	if ord := orderBy(ordering, map[string]string{
		"name":           "name",
		"birth_date":     "birth_date",
		"admission_date": "admission_date",
		"created_at":     "created_at",
	}); ord != nil {
		mods = append(mods, ord...)
	} else {
		mods = append(mods, qm.OrderBy("name ASC"))
	}

	var rows []childRow
	if err := newQuery("children", mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	children := make([]child.Child, 0, len(rows))
	for _, r := range rows {
		children = append(children, r.unboil())
	}
	return children, nil
}

func (repo childRepository) UpdateChild(ctx context.Context, chd child.Child, exec ...core.DBExecutor) (child.Child, error) {
	n, err := execQuery(ctx, repo.getExec(exec),
		`UPDATE children SET name = $2, birth_date = $3, gender = $4, admission_date = $5, discharge_date = $6, updated_at = $7
		WHERE id = $1`,
		chd.ID, chd.Name, chd.BirthDate, chd.Gender, chd.AdmissionDate, chd.DischargeDate, chd.UpdatedAt.UTC())
	if err != nil {
		return child.Child{}, errors.Wrap(err, "updating child")
	}
	if n == 0 {
		return child.Child{}, child.ErrNotFound
	}
	return chd, nil
}

func (repo childRepository) DeleteChild(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM children WHERE id = $1`, id)
	return trapErr(err, child.ErrNotFound, "deleting child")
}

func (repo childRepository) CreateNote(ctx context.Context, note child.Note, exec ...core.DBExecutor) (child.Note, error) {
	note.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO child_notes (id, child_id, institution_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.ChildID, note.InstitutionID, note.AuthorID, note.Body, note.CreatedAt.UTC())
	if err != nil {
		return child.Note{}, trapErr(err, nil, "inserting note")
	}
	return note, nil
}

func (repo childRepository) GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (child.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return child.Note{}, child.ErrNoteNotFound
	}
	var row noteRow
	err := newQuery("child_notes", qm.Select(noteColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return child.Note{}, trapErr(err, child.ErrNoteNotFound, "finding note")
	}
	return row.unboil(), nil
}

func (repo childRepository) QueryNotes(ctx context.Context, childID string, exec ...core.DBExecutor) ([]child.Note, error) {
	var rows []noteRow
	err := newQuery("child_notes",
		qm.Select(noteColumns...),
		qm.Where("child_id = ?", childID),
		qm.OrderBy("created_at DESC"),
	).Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	notes := make([]child.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.unboil())
	}
	return notes, nil
}

func (repo childRepository) DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM child_notes WHERE id = $1`, id)
	return trapErr(err, child.ErrNoteNotFound, "deleting note")
}

func (repo childRepository) CreatePhoto(ctx context.Context, photo child.Photo, exec ...core.DBExecutor) (child.Photo, error) {
	photo.ID = uuid.New().String()
	_, err := execQuery(ctx, repo.getExec(exec),
		`INSERT INTO child_photos (id, child_id, institution_id, key, url, content_type, size, caption, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		photo.ID, photo.ChildID, photo.InstitutionID, photo.Key, photo.URL, photo.ContentType, photo.Size, photo.Caption,
		photo.UploadedBy, photo.CreatedAt.UTC())
	if err != nil {
		return child.Photo{}, trapErr(err, nil, "inserting photo")
	}
	return photo, nil
}

func (repo childRepository) GetPhoto(ctx context.Context, id string, exec ...core.DBExecutor) (child.Photo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return child.Photo{}, child.ErrPhotoNotFound
	}
	var row photoRow
	err := newQuery("child_photos", qm.Select(photoColumns...), qm.Where("id = ?", id), qm.Limit(1)).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return child.Photo{}, trapErr(err, child.ErrPhotoNotFound, "finding photo")
	}
	return row.unboil(), nil
}

func (repo childRepository) QueryPhotos(ctx context.Context, childID string, exec ...core.DBExecutor) ([]child.Photo, error) {
	var rows []photoRow
	err := newQuery("child_photos",
		qm.Select(photoColumns...),
		qm.Where("child_id = ?", childID),
		qm.OrderBy("created_at DESC"),
	).Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying photos")
	}
	photos := make([]child.Photo, 0, len(rows))
	for _, r := range rows {
		photos = append(photos, r.unboil())
	}
	return photos, nil
}

func (repo childRepository) DeletePhoto(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), `DELETE FROM child_photos WHERE id = $1`, id)
	return trapErr(err, child.ErrPhotoNotFound, "deleting photo")
}
