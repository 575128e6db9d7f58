package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minPasswordLength = 8
	birthDateLayout   = "2006-01-02"
)

var validate = validator.New()

// RegisterForm is the sign-up payload
type RegisterForm struct {
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"omitempty,phone"`
	Username        string `json:"username" binding:"omitempty,max=150"`
	FirstName       string `json:"first_name" binding:"required,max=150"`
	LastName        string `json:"last_name" binding:"required,max=150"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
}

// ProfileForm is a partial update of the user and profile. Nil fields are left unchanged.
type ProfileForm struct {
	FirstName  *string `json:"first_name" binding:"omitempty,max=150"`
	LastName   *string `json:"last_name" binding:"omitempty,max=150"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Phone      *string `json:"phone"`
	MiddleName *string `json:"middle_name" binding:"omitempty,max=30"`
	Address    *string `json:"address"`
	City       *string `json:"city" binding:"omitempty,max=100"`
	PostalCode *string `json:"postal_code"`
	BirthDate  *string `json:"birth_date"` // YYYY-MM-DD, empty clears
}

// AccountService handles registration, login and profile maintenance
type AccountService struct {
	db          *gorm.DB
	adminEmails map[string]bool
}

// NewAccountService creates an account service. Users registering with one of
// adminEmails get the admin role.
func NewAccountService(db *gorm.DB, adminEmails ...string) *AccountService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = true
	}
	return &AccountService{db: db, adminEmails: admins}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return invalid("email", "must be a valid email address")
	}
	return nil
}

// normalizeOptionalPhone returns nil for an empty phone and a validated, normalized value otherwise
func normalizeOptionalPhone(phone string) (*string, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, nil
	}
	normalized := utils.NormalizePhone(phone)
	if !utils.IsValidPhone(normalized) {
		return nil, invalid("phone", "must contain 9 to 15 digits with an optional leading +")
	}
	return &normalized, nil
}

// Register creates a user and an empty profile in one transaction
func (s *AccountService) Register(ctx context.Context, form RegisterForm) (*models.User, error) {
	email := normalizeEmail(form.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(form.FirstName) == "" {
		return nil, invalid("first_name", "is required")
	}
	if strings.TrimSpace(form.LastName) == "" {
		return nil, invalid("last_name", "is required")
	}
	if len(form.Password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if form.Password != form.PasswordConfirm {
		return nil, invalid("password_confirm", "passwords do not match")
	}
	phone, err := normalizeOptionalPhone(form.Phone)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(form.Username)
	if username == "" {
		username = email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := models.RoleCustomer
	if s.adminEmails[email] {
		role = models.RoleAdmin
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(form.FirstName),
		LastName:     strings.TrimSpace(form.LastName),
		Role:         role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if exists, err := recordExists(tx, &models.User{}, "email = ?", email); err != nil {
			return err
		} else if exists {
			return ErrEmailTaken
		}
		if exists, err := recordExists(tx, &models.User{}, "username = ?", username); err != nil {
			return err
		} else if exists {
			if strings.TrimSpace(form.Username) == "" {
				return invalid("username", "defaults to the email, which another account uses as its username")
			}
			return invalid("username", "is already taken")
		}
		if phone != nil {
			if exists, err := recordExists(tx, &models.UserProfile{}, "phone = ?", *phone); err != nil {
				return err
			} else if exists {
				return ErrPhoneTaken
			}
		}

		if err := tx.Omit(clause.Associations).Create(&user).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		profile := models.UserProfile{UserID: user.ID, Phone: phone}
		if err := tx.Create(&profile).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrPhoneTaken
			}
			return fmt.Errorf("failed to create profile: %w", err)
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return &user, nil
}

func recordExists(db *gorm.DB, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check uniqueness: %w", err)
	}
	return count > 0, nil
}

// Authenticate resolves identifier as an email, then a profile phone, then a
// username, and checks the password against the first match.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.resolveLogin(s.db.WithContext(ctx), identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) resolveLogin(db *gorm.DB, identifier string) (*models.User, error) {
	var user models.User

	err := db.Where("email = ?", normalizeEmail(identifier)).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if phone := utils.NormalizePhone(identifier); utils.IsValidPhone(phone) {
		var profile models.UserProfile
		err := db.Where("phone = ?", phone).First(&profile).Error
		if err == nil {
			if err := db.First(&user, profile.UserID).Error; err == nil {
				return &user, nil
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to look up user: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up profile: %w", err)
		}
	}

	err = db.Where("username = ?", identifier).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return nil, nil
}

func findUser(db *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := db.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func getOrCreateProfile(db *gorm.DB, userID uint) (*models.UserProfile, error) {
	profile := models.UserProfile{UserID: userID}
	err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	var existing models.UserProfile
	if err := db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &existing, nil
}

// GetOrCreateProfile returns the user's profile, creating an empty one on first use
func (s *AccountService) GetOrCreateProfile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	db := s.db.WithContext(ctx)
	if _, err := findUser(db, userID); err != nil {
		return nil, err
	}
	return getOrCreateProfile(db, userID)
}

// GetUser returns the user with the profile attached
func (s *AccountService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	db := s.db.WithContext(ctx)
	user, err := findUser(db, userID)
	if err != nil {
		return nil, err
	}
	profile, err := getOrCreateProfile(db, userID)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// UpdateProfile applies the non-nil fields of form to the user and profile
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, form ProfileForm) (*models.User, error) {
	db := s.db.WithContext(ctx)

	user, err := findUser(db, userID)
	if err != nil {
		return nil, err
	}
	profile, err := getOrCreateProfile(db, userID)
	if err != nil {
		return nil, err
	}

	if form.FirstName != nil {
		if strings.TrimSpace(*form.FirstName) == "" {
			return nil, invalid("first_name", "cannot be empty")
		}
		user.FirstName = strings.TrimSpace(*form.FirstName)
	}
	if form.LastName != nil {
		if strings.TrimSpace(*form.LastName) == "" {
			return nil, invalid("last_name", "cannot be empty")
		}
		user.LastName = strings.TrimSpace(*form.LastName)
	}
	if form.Email != nil {
		email := normalizeEmail(*form.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != user.Email {
			if exists, err := recordExists(db, &models.User{}, "email = ? AND id <> ?", email, user.ID); err != nil {
				return nil, err
			} else if exists {
				return nil, ErrEmailTaken
			}
			// a username defaulted from the email follows it
			if user.Username == user.Email {
				if exists, err := recordExists(db, &models.User{}, "username = ? AND id <> ?", email, user.ID); err != nil {
					return nil, err
				} else if exists {
					return nil, invalid("email", "is already used as a username")
				}
				user.Username = email
			}
		}
		user.Email = email
	}
	if form.Phone != nil {
		phone, err := normalizeOptionalPhone(*form.Phone)
		if err != nil {
			return nil, err
		}
		if phone != nil {
			if exists, err := recordExists(db, &models.UserProfile{}, "phone = ? AND id <> ?", *phone, profile.ID); err != nil {
				return nil, err
			} else if exists {
				return nil, ErrPhoneTaken
			}
		}
		profile.Phone = phone
	}
	if form.MiddleName != nil {
		profile.MiddleName = strings.TrimSpace(*form.MiddleName)
	}
	if form.Address != nil {
		profile.Address = strings.TrimSpace(*form.Address)
	}
	if form.City != nil {
		profile.City = strings.TrimSpace(*form.City)
	}
	if form.PostalCode != nil {
		code := strings.TrimSpace(*form.PostalCode)
		if code != "" && !utils.IsValidPostalCode(code) {
			return nil, invalid("postal_code", "must be exactly 6 digits")
		}
		profile.PostalCode = code
	}
	if form.BirthDate != nil {
		if strings.TrimSpace(*form.BirthDate) == "" {
			profile.BirthDate = nil
		} else {
			d, err := time.Parse(birthDateLayout, strings.TrimSpace(*form.BirthDate))
			if err != nil {
				return nil, invalid("birth_date", "must be a date in YYYY-MM-DD format")
			}
			profile.BirthDate = &d
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(user).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to update user: %w", err)
		}
		if err := tx.Save(profile).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrPhoneTaken
			}
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.Profile = profile
	return user, nil
}

// SetVerified marks the user's profile as verified or not
func (s *AccountService) SetVerified(ctx context.Context, userID uint, verified bool) (*models.UserProfile, error) {
	db := s.db.WithContext(ctx)
	if _, err := findUser(db, userID); err != nil {
		return nil, err
	}
	profile, err := getOrCreateProfile(db, userID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(profile).Update("is_verified", verified).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	profile.IsVerified = verified
	return profile, nil
}
