package child

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("child")
	ErrNoteNotFound  = core.NewNotFoundError("note")
	ErrPhotoNotFound = core.NewNotFoundError("photo")

	errUnsupportedImage = errors.New("only JPEG, PNG, GIF and WebP images are accepted")

	NowFunc = time.Now // mockable

	photoTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

type (
	Repository interface {
		CreateChild(ctx context.Context, chd Child, exec ...core.DBExecutor) (Child, error)
		GetChild(ctx context.Context, id string, exec ...core.DBExecutor) (Child, error)
		// QueryChildren lists the children of an institution.
		// QueryFilter.Search does a case-insensitive match on Child.Name.
		QueryChildren(ctx context.Context, institutionID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Child, error)
		UpdateChild(ctx context.Context, chd Child, exec ...core.DBExecutor) (Child, error)
		DeleteChild(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateNote(ctx context.Context, note Note, exec ...core.DBExecutor) (Note, error)
		GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (Note, error)
		QueryNotes(ctx context.Context, childID string, exec ...core.DBExecutor) ([]Note, error)
		DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreatePhoto(ctx context.Context, photo Photo, exec ...core.DBExecutor) (Photo, error)
		GetPhoto(ctx context.Context, id string, exec ...core.DBExecutor) (Photo, error)
		QueryPhotos(ctx context.Context, childID string, exec ...core.DBExecutor) ([]Photo, error)
		DeletePhoto(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		tx     core.Transactor
		repo   Repository
		blobs  core.BlobStore
		logger core.Logger
	}
)

func NewService(tx core.Transactor, repo Repository, blobs core.BlobStore, logger core.Logger) *Service {
	return &Service{tx: tx, repo: repo, blobs: blobs, logger: logger}
}

func (svc *Service) Create(ctx context.Context, sess core.Session, nc NewChild) (Child, error) {
	if err := sess.CheckWrite(sess.InstitutionID); err != nil {
		return Child{}, err
	}
	now := NowFunc().UTC()
	chd := Child{
		InstitutionID: sess.InstitutionID,
		Name:          nc.Name,
		BirthDate:     nc.BirthDate,
		Gender:        nc.Gender,
		AdmissionDate: nc.AdmissionDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateChild(ctx, chd)
}

// Get returns the child `id` if it is visible to the session.
func (svc *Service) Get(ctx context.Context, sess core.Session, id string) (Child, error) {
	chd, err := svc.repo.GetChild(ctx, id)
	if err != nil {
		return Child{}, err
	}
	if !sess.CanRead(chd.InstitutionID) {
		return Child{}, ErrNotFound
	}
	return chd, nil
}

func (svc *Service) Query(ctx context.Context, sess core.Session, filter *QueryFilter, ordering []core.DBOrdering) ([]Child, error) {
	if sess.ReadScope() == "" {
		return []Child{}, nil
	}
	ordering = core.OrderingAllowed(ordering, "name", "birth_date", "admission_date", "created_at")
	return svc.repo.QueryChildren(ctx, sess.ReadScope(), filter, ordering)
}

func (svc *Service) Update(ctx context.Context, sess core.Session, orig Child, uc UpdateChild) (Child, error) {
	if err := sess.CheckWrite(orig.InstitutionID); err != nil {
		return Child{}, err
	}
	chd := orig
	chd.Name = uc.Name
	chd.BirthDate = uc.BirthDate
	chd.Gender = uc.Gender
	chd.AdmissionDate = uc.AdmissionDate
	chd.DischargeDate = uc.DischargeDate
	chd.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateChild(ctx, chd)
}

// Delete removes a child along with its notes and photos.
// A child that still owns a case file cannot be removed: the store rejects it with a *core.PersistenceError.
func (svc *Service) Delete(ctx context.Context, sess core.Session, chd Child) error {
	if err := sess.CheckWrite(chd.InstitutionID); err != nil {
		return err
	}

	var keys []string
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		photos, err := svc.repo.QueryPhotos(ctx, chd.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying photos")
		}
		for _, p := range photos {
			if err = svc.repo.DeletePhoto(ctx, p.ID, exec); err != nil {
				return errors.Wrap(err, "deleting photo")
			}
			keys = append(keys, p.Key)
		}
		notes, err := svc.repo.QueryNotes(ctx, chd.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying notes")
		}
		for _, n := range notes {
			if err = svc.repo.DeleteNote(ctx, n.ID, exec); err != nil {
				return errors.Wrap(err, "deleting note")
			}
		}
		return errors.Wrap(svc.repo.DeleteChild(ctx, chd.ID, exec), "deleting child")
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err = svc.blobs.Delete(ctx, key); err != nil {
			svc.logger.Warn(fmt.Sprintf("deleting photo blob %s: %v", key, err), err)
		}
	}
	return nil
}

func (svc *Service) AddNote(ctx context.Context, sess core.Session, chd Child, nn NewNote) (Note, error) {
	if err := sess.CheckWrite(chd.InstitutionID); err != nil {
		return Note{}, err
	}
	note := Note{
		ChildID:       chd.ID,
		InstitutionID: chd.InstitutionID,
		AuthorID:      sess.ActorID,
		Body:          nn.Body,
		CreatedAt:     NowFunc().UTC(),
	}
	return svc.repo.CreateNote(ctx, note)
}

func (svc *Service) QueryNotes(ctx context.Context, sess core.Session, chd Child) ([]Note, error) {
	if !sess.CanRead(chd.InstitutionID) {
		return nil, ErrNotFound
	}
	return svc.repo.QueryNotes(ctx, chd.ID)
}

func (svc *Service) DeleteNote(ctx context.Context, sess core.Session, chd Child, noteID string) error {
	note, err := svc.repo.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note.ChildID != chd.ID {
		return ErrNoteNotFound
	}
	if err = sess.CheckWrite(note.InstitutionID); err != nil {
		return err
	}
	return svc.repo.DeleteNote(ctx, note.ID)
}

// AddPhoto uploads np.Data to the blob store and records the public URL it is served from.
func (svc *Service) AddPhoto(ctx context.Context, sess core.Session, chd Child, np NewPhoto) (Photo, error) {
	if err := sess.CheckWrite(chd.InstitutionID); err != nil {
		return Photo{}, err
	}
	if len(np.Data) == 0 {
		return Photo{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	contentType := http.DetectContentType(np.Data)
	ext, ok := photoTypes[contentType]
	if !ok {
		return Photo{}, core.NewValidationError(errUnsupportedImage, core.FieldError{Field: "file", Error: errUnsupportedImage.Error()})
	}
	if fext := strings.ToLower(filepath.Ext(np.Filename)); ext == ".jpg" && fext == ".jpeg" {
		ext = fext
	}

	key := fmt.Sprintf("%schildren/%s/photos/%s%s", core.InstitutionBlobPrefix(chd.InstitutionID), chd.ID, uuid.New().String(), ext)
	info, err := svc.blobs.Put(ctx, key, bytes.NewReader(np.Data), contentType)
	if err != nil {
		return Photo{}, errors.Wrap(err, "uploading photo")
	}
	url, err := svc.blobs.URL(ctx, key)
	if err != nil {
		return Photo{}, errors.Wrap(err, "resolving photo URL")
	}

	photo, err := svc.repo.CreatePhoto(ctx, Photo{
		ChildID:       chd.ID,
		InstitutionID: chd.InstitutionID,
		Key:           key,
		URL:           url,
		ContentType:   contentType,
		Size:          info.Size,
		Caption:       core.CleanString(np.Caption),
		UploadedBy:    sess.ActorID,
		CreatedAt:     NowFunc().UTC(),
	})
	if err != nil {
		if dErr := svc.blobs.Delete(ctx, key); dErr != nil {
			svc.logger.Warn(fmt.Sprintf("deleting orphan photo blob %s: %v", key, dErr), dErr)
		}
		return Photo{}, errors.Wrap(err, "recording photo")
	}
	return photo, nil
}

func (svc *Service) QueryPhotos(ctx context.Context, sess core.Session, chd Child) ([]Photo, error) {
	if !sess.CanRead(chd.InstitutionID) {
		return nil, ErrNotFound
	}
	return svc.repo.QueryPhotos(ctx, chd.ID)
}

func (svc *Service) DeletePhoto(ctx context.Context, sess core.Session, chd Child, photoID string) error {
	photo, err := svc.repo.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}
	if photo.ChildID != chd.ID {
		return ErrPhotoNotFound
	}
	if err = sess.CheckWrite(photo.InstitutionID); err != nil {
		return err
	}
	if err = svc.repo.DeletePhoto(ctx, photo.ID); err != nil {
		return errors.Wrap(err, "deleting photo")
	}
	if err = svc.blobs.Delete(ctx, photo.Key); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting photo blob %s: %v", photo.Key, err), err)
	}
	return nil
}
