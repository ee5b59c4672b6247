package seed

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/storage"
	"gopkg.in/yaml.v3"
)

// File is the on-disk bootstrap description
type File struct {
	MainAdmin Admin                    `yaml:"mainAdmin"`
	Cars      []map[string]interface{} `yaml:"cars"`
}

// Admin identifies the main admin account
type Admin struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// ValidationError describes one problem in a seed file
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Report summarizes what Apply changed
type Report struct {
	AdminCreated bool
	CarsInserted int
	CarsSkipped  int
}

// LoadFile reads and parses a seed file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Validate reports every problem in f
func Validate(f *File) []ValidationError {
	var errs []ValidationError

	if f.MainAdmin.Email == "" {
		errs = append(errs, ValidationError{Field: "mainAdmin.email", Message: "email is required"})
	} else if _, err := mail.ParseAddress(f.MainAdmin.Email); err != nil {
		errs = append(errs, ValidationError{Field: "mainAdmin.email", Message: fmt.Sprintf("invalid email: %s", f.MainAdmin.Email)})
	}

	titles := make(map[string]int, len(f.Cars))
	for i, car := range f.Cars {
		field := fmt.Sprintf("cars[%d].title", i)
		title, _ := car[storage.FieldTitle].(string)
		if strings.TrimSpace(title) == "" {
			errs = append(errs, ValidationError{Field: field, Message: "title is required"})
			continue
		}
		if prev, dup := titles[title]; dup {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicates cars[%d]", prev)})
			continue
		}
		titles[title] = i
	}

	return errs
}

// Seeder writes a seed file into a store
type Seeder struct {
	users  storage.Collection
	guards *policy.Guards
	roles  policy.RoleInvalidator
	log    logrus.FieldLogger
}

// Option configures a Seeder
type Option func(*Seeder)

// WithRoleInvalidator flushes the main admin's cached role after seeding
func WithRoleInvalidator(r policy.RoleInvalidator) Option {
	return func(s *Seeder) {
		s.roles = r
	}
}

// WithLogger sets the seeder logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Seeder) {
		s.log = log
	}
}

// NewSeeder creates a seeder. Catalog entries go through guards so the
// title uniqueness check applies.
func NewSeeder(store storage.Store, guards *policy.Guards, opts ...Option) *Seeder {
	s := &Seeder{
		users:  store.Collection(storage.CollectionUsers),
		guards: guards,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply upserts the main admin and inserts the main catalog entries.
// Entries whose title already exists are skipped. Apply refuses to run
// when another account already holds the main admin flag.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Report, error) {
	if errs := Validate(f); len(errs) > 0 {
		return nil, apperrors.InvalidArgument(errs[0].Error())
	}

	report := &Report{}

	created, err := s.seedAdmin(ctx, f.MainAdmin)
	if err != nil {
		return nil, err
	}
	report.AdminCreated = created

	for _, car := range f.Cars {
		doc := storage.Document(car)
		doc[storage.FieldMain] = true

		if _, err := s.guards.InsertCatalogEntry(ctx, doc); err != nil {
			if apperrors.Is(err, apperrors.KindConflict) {
				s.log.WithField("title", doc[storage.FieldTitle]).Info("catalog entry already present, skipping")
				report.CarsSkipped++
				continue
			}
			return report, err
		}
		report.CarsInserted++
	}

	s.log.WithFields(logrus.Fields{
		"admin":         f.MainAdmin.Email,
		"admin_created": report.AdminCreated,
		"cars_inserted": report.CarsInserted,
		"cars_skipped":  report.CarsSkipped,
	}).Info("seed applied")

	return report, nil
}

func (s *Seeder) seedAdmin(ctx context.Context, admin Admin) (bool, error) {
	for doc, err := range s.users.Find(ctx, storage.Filter{storage.FieldMainAdmin: true}) {
		if err != nil {
			return false, apperrors.Internal("failed to look up main admin", err)
		}
		if email, _ := doc[storage.FieldEmail].(string); email != admin.Email {
			return false, apperrors.Conflict(fmt.Sprintf("main admin is already %s", email))
		}
	}

	set := storage.Document{
		storage.FieldEmail:     admin.Email,
		storage.FieldRole:      storage.RoleAdmin,
		storage.FieldMainAdmin: true,
	}
	if admin.Name != "" {
		set[storage.FieldName] = admin.Name
	}

	result, err := s.users.UpdateOne(ctx, storage.ByEmail(admin.Email), set, true)
	if err != nil {
		return false, apperrors.Internal("failed to upsert main admin", err)
	}
	if s.roles != nil {
		s.roles.Invalidate(ctx, admin.Email)
	}
	return result.UpsertedCount > 0, nil
}
