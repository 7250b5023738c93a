package user

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/rentwise/rentwise/internal/database"
	"github.com/rentwise/rentwise/internal/events"
	"github.com/rentwise/rentwise/internal/identity"
	"github.com/rentwise/rentwise/internal/metrics"
	"github.com/rentwise/rentwise/internal/model"
	"go.uber.org/zap"
)

// CreateUserRequest holds the attributes of a new user.
type CreateUserRequest struct {
	Email      string       `json:"email" validate:"required,notblank,email"`
	FirstName  string       `json:"firstName" validate:"required,notblank"`
	LastName   string       `json:"lastName" validate:"required,notblank"`
	Phone      string       `json:"phone" validate:"required,notblank"`
	Gender     model.Gender `json:"gender" validate:"required,oneof=male female other"`
	Address    string       `json:"address,omitempty"`
	City       string       `json:"city" validate:"required,notblank"`
	State      string       `json:"state" validate:"required,notblank"`
	PostalCode string       `json:"postalCode" validate:"required,notblank"`
	Role       model.Role   `json:"role" validate:"required,oneof=tenant landlord admin"`
}

// ProfileUpdate is a partial update of the caller's own profile. Fields
// that are not present are left untouched.
type ProfileUpdate struct {
	FirstName  model.OptionalString `json:"firstName"`
	LastName   model.OptionalString `json:"lastName"`
	Phone      model.OptionalString `json:"phone"`
	Address    model.OptionalString `json:"address"`
	State      model.OptionalString `json:"state"`
	City       model.OptionalString `json:"city"`
	PostalCode model.OptionalString `json:"postalCode"`
}

// clearable lists the profile fields a caller may remove.
var clearable = map[string]bool{
	model.UserFieldAddress: true,
}

// Service creates users and applies profile updates.
type Service struct {
	store     database.Store
	resolver  identity.Resolver
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate
	clock     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher that receives user events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the collectors the service reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for creation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a user service over store, identifying callers
// with resolver.
func NewService(store database.Store, resolver identity.Resolver, opts ...Option) *Service {
	s := &Service{
		store:     store,
		resolver:  resolver,
		publisher: events.Noop{},
		logger:    zap.NewNop(),
		validate:  newValidator(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return model.ErrInvalidField(verrs[0].Field(), verrs[0].Tag())
	}
	return model.ErrInvalidField("", err.Error())
}

// CreateUser stores a new user. The email must not belong to an
// existing user.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) error {
	_, err := s.Register(ctx, req)
	return err
}

// Register is CreateUser that also returns the id the store assigned.
func (s *Service) Register(ctx context.Context, req CreateUserRequest) (id string, err error) {
	defer func() { s.metrics.ObserveUserCreation(err) }()

	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return "", validationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()

	_, err = s.store.GetByIndex(ctx, model.CollectionUsers, model.UserFieldEmail, req.Email)
	switch {
	case err == nil:
		return "", model.ErrDuplicateEntity(model.UserFieldEmail)
	case !errors.Is(err, database.ErrNotFound):
		s.logger.Error("Error looking up user by email", zap.Error(err))
		return "", model.ErrInternal(err)
	}

	user := &model.User{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Gender:     req.Gender,
		Address:    req.Address,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Role:       req.Role,
		CreatedAt:  s.clock().UTC(),
	}
	id, err = s.store.Insert(ctx, model.CollectionUsers, user.Document())
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return "", model.ErrDuplicateEntity(model.UserFieldEmail)
		}
		s.logger.Error("Error inserting user", zap.Error(err))
		return "", model.ErrInternal(err)
	}
	s.logger.Info("User created", zap.String("user_id", id), zap.String("role", string(user.Role)))

	evt := events.UserCreated{ID: id, Email: user.Email, Role: user.Role, CreatedAt: user.CreatedAt}
	if perr := s.publisher.PublishUserCreated(ctx, evt); perr != nil {
		s.logger.Warn("Failed to publish user created event", zap.String("user_id", id), zap.Error(perr))
	}
	return id, nil
}

// UpdateProfile applies update to the caller's own record and returns the
// caller's id. There is no way to target another user.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (id string, err error) {
	defer func() { s.metrics.ObserveProfileUpdate(err) }()

	id, ok := s.resolver.CurrentIdentity(ctx)
	if !ok || id == "" {
		return "", model.ErrUnauthenticated()
	}

	fields, err := update.fields()
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", model.ErrEmptyUpdate()
	}

	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()

	if err := s.store.Patch(ctx, model.CollectionUsers, id, fields); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", model.ErrNotFound("user")
		}
		s.logger.Error("Error updating profile", zap.String("user_id", id), zap.Error(err))
		return "", model.ErrInternal(err)
	}
	return id, nil
}

// GetProfile returns the caller's own record.
func (s *Service) GetProfile(ctx context.Context) (*model.User, error) {
	id, ok := s.resolver.CurrentIdentity(ctx)
	if !ok || id == "" {
		return nil, model.ErrUnauthenticated()
	}

	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()

	doc, err := s.store.Get(ctx, model.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, model.ErrNotFound("user")
		}
		return nil, model.ErrInternal(err)
	}
	var user model.User
	if err := database.Decode(doc, &user); err != nil {
		return nil, model.ErrInternal(err)
	}
	return &user, nil
}

// fields builds the patch for the present attributes of the update.
func (u ProfileUpdate) fields() (database.Document, error) {
	fields := make(database.Document)
	for _, f := range []struct {
		name string
		opt  model.OptionalString
	}{
		{model.UserFieldFirstName, u.FirstName},
		{model.UserFieldLastName, u.LastName},
		{model.UserFieldPhone, u.Phone},
		{model.UserFieldAddress, u.Address},
		{model.UserFieldState, u.State},
		{model.UserFieldCity, u.City},
		{model.UserFieldPostalCode, u.PostalCode},
	} {
		if !f.opt.Present() {
			continue
		}
		if f.opt.IsClear() {
			if !clearable[f.name] {
				return nil, model.ErrInvalidField(f.name, "required")
			}
			fields[f.name] = nil
			continue
		}
		v, _ := f.opt.Value()
		if strings.TrimSpace(v) == "" {
			if !clearable[f.name] {
				return nil, model.ErrInvalidField(f.name, "notblank")
			}
			fields[f.name] = nil
			continue
		}
		fields[f.name] = v
	}
	return fields, nil
}
