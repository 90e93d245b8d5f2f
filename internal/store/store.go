// Package store owns events, donors and invitation tasks in SQLite. It is the
// only writer of those tables; every public operation returns either a value
// or one of the typed errors in errors.go.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"donortrack/internal/activity"
)

// TransitionPolicy decides whether approved/rejected tasks may change status again.
type TransitionPolicy string

const (
	// PolicyOpen allows corrections between terminal states.
	PolicyOpen TransitionPolicy = "open"
	// PolicyLocked refuses any change once a task leaves pending.
	PolicyLocked TransitionPolicy = "locked"
)

// ParseTransitionPolicy maps a config value onto a policy; empty means open.
func ParseTransitionPolicy(v string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyLocked:
		return PolicyLocked, nil
	}
	return "", fmt.Errorf("unknown transition policy %q (want open or locked)", v)
}

type Store struct {
	DB       *sql.DB
	Activity activity.Writer
	Policy   TransitionPolicy
	Now      func() time.Time
	// Observe, when set, is called once per public operation with its outcome label.
	Observe func(op, outcome string, elapsed time.Duration)

	// donorMu serializes find-or-create so one process never inserts a name twice.
	donorMu sync.Mutex
}

func New(db *sql.DB) *Store {
	return &Store{
		DB:       db,
		Activity: activity.Writer{DB: db},
		Policy:   PolicyOpen,
		Now:      time.Now,
	}
}

func (s *Store) now() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// track is deferred by every public operation: it normalizes the error and reports it.
func (s *Store) track(op string, start time.Time, errp *error) {
	*errp = fault(op, *errp)
	if s.Observe != nil {
		s.Observe(op, outcome(*errp), time.Since(start))
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// validateInput runs struct tags and converts the first failure into an *InvalidInputError.
// prefix qualifies the field name, e.g. "donors[2]".
func validateInput(v any, prefix string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &InvalidInputError{Field: strings.TrimSuffix(prefix, "."), Reason: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return &InvalidInputError{Field: field, Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
