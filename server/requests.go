package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/go-playground/validator/v10"
	"github.com/zenazn/goji/web"
)

// UserHeader carries the id of the acting user.
const UserHeader = "X-Catvol-User"

var emptyC = web.C{}

// form reads typed request parameters from the URL pattern, the query string and
// POST bodies.  The first parse error is kept and later reads become no-ops.
type form struct {
	c   web.C
	r   *http.Request
	err error
}

func newForm(c web.C, r *http.Request) *form {
	f := &form{c: c, r: r}
	if err := r.ParseForm(); err != nil {
		f.err = catvol.Invalid("", "could not parse form: %v", err)
	}
	return f
}

func (f *form) raw(name string) (string, bool) {
	if v, found := f.c.URLParams[name]; found {
		return v, true
	}
	if _, found := f.r.Form[name]; !found {
		return "", false
	}
	return f.r.Form.Get(name), true
}

func (f *form) fail(name, format string, args ...interface{}) {
	if f.err == nil {
		f.err = catvol.Invalid(name, format, args...)
	}
}

func (f *form) str(name, def string) string {
	v, found := f.raw(name)
	if !found {
		return def
	}
	return v
}

func (f *form) required(name string) string {
	v, found := f.raw(name)
	if !found || v == "" {
		f.fail(name, "missing required parameter")
	}
	return v
}

func (f *form) int64(name string, def int64) int64 {
	v, found := f.raw(name)
	if !found || v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f.fail(name, "%q is not an integer", v)
		return def
	}
	return i
}

func (f *form) int(name string, def int) int {
	return int(f.int64(name, int64(def)))
}

func (f *form) int32(name string, def int32) int32 {
	i := f.int64(name, int64(def))
	if i < math.MinInt32 || i > math.MaxInt32 {
		f.fail(name, "%d is out of range", i)
		return def
	}
	return int32(i)
}

// mustInt64 requires a parameter to be present.
func (f *form) mustInt64(name string) int64 {
	if v, found := f.raw(name); !found || v == "" {
		f.fail(name, "missing required parameter")
		return 0
	}
	return f.int64(name, 0)
}

// optInt64 returns nil for a missing parameter or the literal "null".
func (f *form) optInt64(name string) *int64 {
	v, found := f.raw(name)
	if !found || v == "" || v == "null" {
		return nil
	}
	i := f.int64(name, 0)
	return &i
}

func (f *form) float64(name string, def float64) float64 {
	v, found := f.raw(name)
	if !found || v == "" {
		return def
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.fail(name, "%q is not a number", v)
		return def
	}
	return x
}

func (f *form) bool(name string, def bool) bool {
	v, found := f.raw(name)
	if !found || v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		f.fail(name, "%q is not a boolean", v)
		return def
	}
	return b
}

func (f *form) strings(name string) []string {
	vals := f.r.Form[name]
	if len(vals) == 0 {
		vals = f.r.Form[name+"[]"]
	}
	return vals
}

// userID reads the acting user, defaulting to the anonymous user 0.
func (f *form) userID() int64 {
	v := f.r.Header.Get(UserHeader)
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f.fail(UserHeader, "%q is not a user id", v)
	}
	return id
}

// check returns the first parse error, then runs struct validation over req.
func (s *Service) check(f *form, req interface{}) error {
	if f.err != nil {
		return f.err
	}
	err := s.validate.Struct(req)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) != 0 {
		fe := verrs[0]
		return catvol.Invalid(fe.Field(), "fails %q constraint with value %v", fe.ActualTag(), fe.Value())
	}
	return err
}

type projectRequest struct {
	ProjectID int64 `validate:"gt=0"`
}

type stackRequest struct {
	ProjectID int64 `validate:"gt=0"`
	StackID   int64 `validate:"gt=0"`
}

func readStack(f *form) stackRequest {
	return stackRequest{
		ProjectID: f.mustInt64("project"),
		StackID:   f.mustInt64("stack"),
	}
}

type locationRequest struct {
	stackRequest
	X     int32 `validate:"gte=0"`
	Y     int32 `validate:"gte=0"`
	Z     int32 `validate:"gte=0"`
	Limit int   `validate:"gt=0"`
}

type componentRequest struct {
	stackRequest
	ID    int64 `validate:"gte=0"`
	Z     int32 `validate:"gte=0"`
	Red   int   `validate:"gte=0,lte=255"`
	Green int   `validate:"gte=0,lte=255"`
	Blue  int   `validate:"gte=0,lte=255"`
	Alpha int   `validate:"gte=0,lte=255"`
}

type scopeRequest struct {
	stackRequest
	SkeletonID int64 `validate:"gt=0"`
	Z          int32 `validate:"gte=0"`
}

type viewportRequest struct {
	ProjectID      int64 `validate:"gt=0"`
	Z              int   `validate:"gte=0"`
	Top            int
	Left           int
	Width          int `validate:"gt=0"`
	Height         int `validate:"gt=0"`
	ZRes           int `validate:"gt=0"`
	ActiveSkeleton int64
}

type skeletonRequest struct {
	ProjectID  int64 `validate:"gt=0"`
	SkeletonID int64 `validate:"gt=0"`
}
