package services

import (
	"context"
	"crypto/subtle"
	"mime/multipart"
	"strings"
	"time"

	"github.com/VanitasCaesar1/clinic/cache"
	"github.com/VanitasCaesar1/clinic/media"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	availableDoctorsKey = "available"
	availableDoctorsTTL = 5 * time.Minute
)

// TokenIssuer issues and revokes the tokens handed out on login.
type TokenIssuer interface {
	GenerateJWT(ctx context.Context, principal models.Principal) (string, error)
	InvalidateToken(ctx context.Context, jti string) error
}

type AdminCredentials struct {
	Email    string
	Password string
}

// AccountService covers users, doctors and the admin account.
type AccountService struct {
	store   store.Store
	tokens  TokenIssuer
	doctors *cache.Cache
	images  media.Uploader
	admin   AdminCredentials
	logger  *zap.Logger
	now     func() time.Time
}

func NewAccountService(st store.Store, tokens TokenIssuer, doctorCache *cache.Cache, images media.Uploader, admin AdminCredentials, logger *zap.Logger) *AccountService {
	return &AccountService{
		store:   st,
		tokens:  tokens,
		doctors: doctorCache,
		images:  images,
		admin:   admin,
		logger:  logger,
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

// Users

func (s *AccountService) RegisterUser(ctx context.Context, name, email, password string) (string, error) {
	email = normalizeEmail(email)
	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	user := &models.User{
		UserProfile: models.UserProfile{
			Name:   strings.TrimSpace(name),
			Email:  email,
			Image:  models.DefaultUserImage,
			Phone:  "0000000000",
			Gender: models.NotSelected,
			DOB:    models.NotSelected,
		},
		Password: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", Validation("User already exists")
		}
		return "", err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return s.tokens.GenerateJWT(ctx, models.Principal{ID: user.ID.Hex(), Role: models.RoleUser})
}

func (s *AccountService) LoginUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredential
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredential
	}
	return s.tokens.GenerateJWT(ctx, models.Principal{ID: user.ID.Hex(), Role: models.RoleUser})
}

func (s *AccountService) UserProfile(ctx context.Context, actor models.Principal) (*models.UserProfile, error) {
	id, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user.UserProfile, nil
}

// UpdateUserProfile stores the new profile fields and, when given, a new picture.
func (s *AccountService) UpdateUserProfile(ctx context.Context, actor models.Principal, update models.UserProfileUpdate, image *multipart.FileHeader) (*models.UserProfile, error) {
	id, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if image != nil {
		url, err := s.images.Upload(ctx, media.BucketProfiles, image)
		if err != nil {
			return nil, imageError(err)
		}
		update.Image = url
	}
	user, err := s.store.UpdateUserProfile(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user.UserProfile, nil
}

// Logout ends the session behind the caller's token.
func (s *AccountService) Logout(ctx context.Context, actor models.Principal) error {
	if actor.SessionID == "" {
		return nil
	}
	return s.tokens.InvalidateToken(ctx, actor.SessionID)
}

// Doctors

type NewDoctor struct {
	Name       string
	Email      string
	Password   string
	Speciality string
	Degree     string
	Experience string
	About      string
	Fees       float64
	Address    models.Address
}

func (s *AccountService) AddDoctor(ctx context.Context, input NewDoctor, image *multipart.FileHeader) (*models.DoctorProfile, error) {
	if image == nil {
		return nil, Validation("Image is required")
	}
	email := normalizeEmail(input.Email)
	if _, err := s.store.GetDoctorByEmail(ctx, email); err == nil {
		return nil, Validation("Doctor already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	url, err := s.images.Upload(ctx, media.BucketDoctors, image)
	if err != nil {
		return nil, imageError(err)
	}

	doctor := &models.Doctor{
		DoctorProfile: models.DoctorProfile{
			Name:       strings.TrimSpace(input.Name),
			Email:      email,
			Image:      url,
			Speciality: input.Speciality,
			Degree:     input.Degree,
			Experience: input.Experience,
			About:      input.About,
			Available:  true,
			Fees:       input.Fees,
			Address:    input.Address,
			Date:       s.now().UnixMilli(),
		},
		Password:    hash,
		SlotsBooked: models.SlotLedger{},
	}
	if err := s.store.CreateDoctor(ctx, doctor); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Validation("Doctor already exists")
		}
		return nil, err
	}
	s.invalidateDoctorList(ctx)

	s.logger.Info("doctor added", zap.String("doctor_id", doctor.ID.Hex()))
	return &doctor.DoctorProfile, nil
}

func (s *AccountService) LoginDoctor(ctx context.Context, email, password string) (string, error) {
	doctor, err := s.store.GetDoctorByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredential
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doctor.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredential
	}
	return s.tokens.GenerateJWT(ctx, models.Principal{ID: doctor.ID.Hex(), Role: models.RoleDoctor})
}

func (s *AccountService) DoctorProfile(ctx context.Context, actor models.Principal) (*models.Doctor, error) {
	id, err := store.ParseID(actor.ID)
	if err != nil {
		return nil, ErrDoctorNotFound
	}
	doctor, err := s.store.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return doctor, nil
}

func (s *AccountService) UpdateDoctorProfile(ctx context.Context, actor models.Principal, update models.DoctorProfileUpdate) error {
	id, err := store.ParseID(actor.ID)
	if err != nil {
		return ErrDoctorNotFound
	}
	if err := s.store.UpdateDoctorProfile(ctx, id, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDoctorNotFound
		}
		return err
	}
	s.invalidateDoctorList(ctx)
	return nil
}

// ChangeAvailability toggles whether the doctor accepts bookings.
func (s *AccountService) ChangeAvailability(ctx context.Context, doctorID string) error {
	id, err := store.ParseID(doctorID)
	if err != nil {
		return ErrDoctorNotFound
	}
	doctor, err := s.store.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDoctorNotFound
		}
		return err
	}
	if err := s.store.SetAvailability(ctx, id, !doctor.Available); err != nil {
		return err
	}
	s.invalidateDoctorList(ctx)
	return nil
}

func (s *AccountService) AllDoctors(ctx context.Context) ([]models.DoctorProfile, error) {
	doctors, err := s.store.ListDoctors(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]models.DoctorProfile, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, d.DoctorProfile)
	}
	return out, nil
}

// AvailableDoctors is the public doctor list. It is served from the cache
// when possible; profile, availability and slot ledger changes drop the
// cached copy.
func (s *AccountService) AvailableDoctors(ctx context.Context) ([]models.DoctorListing, error) {
	return cache.Fetch(ctx, s.doctors, availableDoctorsKey, availableDoctorsTTL,
		func(ctx context.Context) ([]models.DoctorListing, error) {
			doctors, err := s.store.ListDoctors(ctx, true)
			if err != nil {
				return nil, err
			}
			listing := make([]models.DoctorListing, 0, len(doctors))
			for i := range doctors {
				listing = append(listing, doctors[i].Listing())
			}
			return listing, nil
		})
}

func (s *AccountService) invalidateDoctorList(ctx context.Context) {
	dropDoctorList(ctx, s.doctors, s.logger)
}

// dropDoctorList clears every cached doctor view. Listings embed the slot
// ledger, so bookings and cancellations call it as well as profile edits.
func dropDoctorList(ctx context.Context, doctors *cache.Cache, logger *zap.Logger) {
	if doctors == nil {
		return
	}
	if err := doctors.Clear(ctx); err != nil {
		logger.Warn("failed to invalidate doctor list cache", zap.Error(err))
	}
}

// Admin

func (s *AccountService) LoginAdmin(ctx context.Context, email, password string) (string, error) {
	if s.admin.Email == "" || s.admin.Password == "" {
		return "", ErrInvalidCredential
	}
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(normalizeEmail(s.admin.Email))) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !emailOK || !passwordOK {
		return "", ErrInvalidCredential
	}
	return s.tokens.GenerateJWT(ctx, models.Principal{ID: normalizeEmail(s.admin.Email), Role: models.RoleAdmin})
}

// imageError turns upload validation failures into caller errors.
func imageError(err error) error {
	switch {
	case errors.Is(err, media.ErrTooLarge),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, media.ErrInvalidImage):
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	return errors.Wrap(err, "Error uploading image")
}
