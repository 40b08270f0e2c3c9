package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/utils"
)

const (
	minNameLen = 3
	maxNameLen = 64
)

// RegisterInput creates a local account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput authenticates a local account.
type LoginInput struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput changes the caller's public profile.
type UpdateProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,min=3,max=64"`
	Image *string `json:"image" validate:"omitempty,max=512"`
}

// OAuthIdentity is what a provider tells us about a signed-in user.
type OAuthIdentity struct {
	Provider  string
	ID        string
	Login     string
	Email     string
	AvatarURL string
}

// UserService manages accounts and resolves sessions.
type UserService struct {
	db         *gorm.DB
	questions  *QuestionService
	adminNames []string
}

// NewUserService creates a UserService. Local accounts registered with a name in adminNames
// get the ADMIN role; OAuth sign-ups never take those names. Profile changes invalidate the
// feed cache of questions because feed rows carry author names and images.
func NewUserService(db *gorm.DB, questions *QuestionService, adminNames []string) *UserService {
	return &UserService{db: db, questions: questions, adminNames: adminNames}
}

// SessionFor reloads the user so the session reflects the current role.
func (s *UserService) SessionFor(ctx context.Context, userID uint) (*Session, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if utils.IsNotFound(err) {
			return nil, utils.Unauthorized(40102, "user no longer exists")
		}
		return nil, utils.Internal(50301, "failed to load user", err)
	}
	return SessionFromUser(&u), nil
}

// Profile returns the public profile of a user. Hidden questions are not counted.
func (s *UserService) Profile(ctx context.Context, id uint) (*Profile, error) {
	var p *Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.First(&u, id).Error; err != nil {
			if utils.IsNotFound(err) {
				return utils.NotFound(40403, fmt.Sprintf("No user with id '%d'", id))
			}
			return utils.Internal(50301, "failed to load user", err)
		}
		p = &Profile{ID: u.ID, Name: u.Name, Image: u.Image, Role: u.Role, CreatedAt: u.CreatedAt}
		if err := tx.Model(&models.Question{}).
			Where("author_id = ? AND hidden = ?", id, false).
			Count(&p.QuestionCount).Error; err != nil {
			return utils.Internal(50302, "failed to count questions", err)
		}
		if err := tx.Model(&models.Comment{}).
			Where("author_id = ?", id).
			Count(&p.CommentCount).Error; err != nil {
			return utils.Internal(50303, "failed to count comments", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile changes the caller's name and/or image.
func (s *UserService) UpdateProfile(ctx context.Context, sess *Session, in UpdateProfileInput) (*Session, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	var u models.User
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, sess.UserID).Error; err != nil {
			if utils.IsNotFound(err) {
				return utils.Unauthorized(40102, "user no longer exists")
			}
			return utils.Internal(50301, "failed to load user", err)
		}

		updates := map[string]interface{}{}
		if in.Name != nil {
			name, err := normalizeName(*in.Name)
			if err != nil {
				return err
			}
			if name != u.Name {
				var count int64
				if err := tx.Model(&models.User{}).Where("name = ? AND id <> ?", name, u.ID).Count(&count).Error; err != nil {
					return utils.Internal(50304, "failed to check name", err)
				}
				if count > 0 {
					return utils.Conflict(40901, "name already taken")
				}
				updates["name"] = name
			}
		}
		if in.Image != nil {
			updates["image"] = strings.TrimSpace(*in.Image)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&u).Updates(updates).Error; err != nil {
			if utils.IsDuplicateKey(err) {
				return utils.Conflict(40901, "name already taken")
			}
			return utils.Internal(50305, "failed to update profile", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed && s.questions != nil {
		s.questions.invalidate(ctx)
	}
	return SessionFromUser(&u), nil
}

// Register creates a local account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.Internal(50306, "failed to hash password", err)
	}

	u := models.User{
		Name:         name,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         s.initialRole(name),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return utils.Internal(50304, "failed to check name", err)
		}
		if count > 0 {
			return utils.Conflict(40901, "name already taken")
		}
		if err := tx.Create(&u).Error; err != nil {
			if utils.IsDuplicateKey(err) {
				return utils.Conflict(40901, "name already taken")
			}
			return utils.Internal(50307, "failed to create user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate checks local credentials. Unknown names and wrong passwords fail the same way.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(in.Name)).First(&u).Error; err != nil {
		if utils.IsNotFound(err) {
			return nil, utils.Unauthorized(40106, "invalid name or password")
		}
		return nil, utils.Internal(50301, "failed to load user", err)
	}
	if !utils.CheckPassword(u.PasswordHash, in.Password) {
		return nil, utils.Unauthorized(40106, "invalid name or password")
	}
	return &u, nil
}

// FindOrCreateOAuthUser links a provider identity to a user, creating one on first sign-in.
func (s *UserService) FindOrCreateOAuthUser(ctx context.Context, id OAuthIdentity) (*models.User, error) {
	var u models.User
	imageChanged := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND provider_id = ?", id.Provider, id.ID).First(&u).Error
		if err == nil {
			imageChanged = u.Image != id.AvatarURL
			if err := tx.Model(&u).Updates(map[string]interface{}{
				"email": strings.TrimSpace(id.Email),
				"image": id.AvatarURL,
			}).Error; err != nil {
				return utils.Internal(50310, "failed to update user", err)
			}
			return nil
		}
		if !utils.IsNotFound(err) {
			return utils.Internal(50301, "failed to load user", err)
		}

		name, err := uniqueName(tx, id.Login, id.Provider, id.ID, s.isAdminName)
		if err != nil {
			return err
		}
		u = models.User{
			Name:       name,
			Email:      strings.TrimSpace(id.Email),
			Image:      id.AvatarURL,
			Provider:   id.Provider,
			ProviderID: id.ID,
			Role:       models.RoleUser,
		}
		if err := tx.Create(&u).Error; err != nil {
			return utils.Internal(50307, "failed to create user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if imageChanged && s.questions != nil {
		s.questions.invalidate(ctx)
	}
	return &u, nil
}

// SetRole changes the role of the user with the given name.
func (s *UserService) SetRole(ctx context.Context, name string, role models.Role) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", strings.TrimSpace(name)).First(&u).Error; err != nil {
			if utils.IsNotFound(err) {
				return utils.NotFound(40404, fmt.Sprintf("No user named '%s'", name))
			}
			return utils.Internal(50301, "failed to load user", err)
		}
		if err := tx.Model(&u).Update("role", role).Error; err != nil {
			return utils.Internal(50308, "failed to update role", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users in creation order.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, utils.Internal(50309, "failed to list users", err)
	}
	return users, nil
}

func (s *UserService) initialRole(name string) models.Role {
	if s.isAdminName(name) {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func (s *UserService) isAdminName(name string) bool {
	for _, n := range s.adminNames {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}

// normalizeName cleans a display name and checks length and character set.
func normalizeName(raw string) (string, error) {
	name := utils.PlainText(raw)
	if l := len([]rune(name)); l < minNameLen || l > maxNameLen {
		return "", utils.BadRequest(40002, fmt.Sprintf("name must be %d-%d characters", minNameLen, maxNameLen))
	}
	if !validName(name) {
		return "", utils.BadRequest(40002, "name may only contain letters, digits, '-' and '_'")
	}
	return name, nil
}

func validName(s string) bool {
	for _, r := range s {
		switch {
		case r == '-' || r == '_':
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= 0x4E00 && r <= 0x9FFF:
		default:
			return false
		}
	}
	return true
}

func sanitizeLogin(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || r == '@':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > maxNameLen-8 {
		out = out[:maxNameLen-8]
	}
	return out
}

// uniqueName derives a free user name from a provider login. Names for which reserved
// reports true are skipped as if taken.
func uniqueName(tx *gorm.DB, login, provider, id string, reserved func(string) bool) (string, error) {
	base := sanitizeLogin(login)
	if len(base) < minNameLen {
		base = sanitizeLogin(provider + "_" + id)
	}
	if len(base) < minNameLen {
		base = "user_" + id
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		if !reserved(candidate) {
			var count int64
			if err := tx.Model(&models.User{}).Where("name = ?", candidate).Count(&count).Error; err != nil {
				return "", utils.Internal(50304, "failed to check name", err)
			}
			if count == 0 {
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}
