package echoapi

import (
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
)

var (
	orderingParam = "ordering"

	maxPhotoSize int64 = 10 << 20 // 10MB
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-field`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPhoto reads the multipart `file` and `caption` fields of a photo upload.
func bindPhoto(ctx echo.Context) (child.NewPhoto, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return child.NewPhoto{}, errFileRequired
	}
	if fh.Size > maxPhotoSize {
		return child.NewPhoto{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is too large (max 10MB)"})
	}
	f, err := fh.Open()
	if err != nil {
		return child.NewPhoto{}, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPhotoSize))
	if err != nil {
		return child.NewPhoto{}, errors.Wrap(err, "reading uploaded file")
	}
	return child.NewPhoto{
		Filename: fh.Filename,
		Caption:  ctx.FormValue("caption"),
		Data:     data,
	}, nil
}
