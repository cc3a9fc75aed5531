package echoapi

import (
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
)

var (
	orderingParam = "ordering"

	errInvalidOrdering = errors.New("invalid ordering")
)

// Ordering binds `?ordering=field,-other` where a leading "-" means descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind fails with a core.ValidationError when a field is not one of allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) error {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return nil
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return nil
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !slices.Contains(allowed, field) {
			return core.NewValidationError(errInvalidOrdering, core.FieldError{
				Field: orderingParam,
				Error: "cannot order by \"" + field + "\", expected one of: " + strings.Join(allowed, ", "),
			})
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}
