// Package directory resolves moderation roles for request actors. Staff
// roles come from a JSON config file so that granting admin rights never
// requires a database migration; everyone else is looked up in the
// persistent user store and defaults to the reporter role.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"trustline/internal/moderation"
)

// StaffUser is one configured staff member.
type StaffUser struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Email string          `json:"email,omitempty"`
	Role  moderation.Role `json:"role"`
}

// Config is the on-disk staff configuration.
type Config struct {
	Staff []StaffUser `json:"staff"`
}

// Validate checks the config for duplicate ids and unknown roles.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Staff))
	for _, u := range c.Staff {
		if u.ID == "" {
			return fmt.Errorf("staff entry missing id")
		}
		if seen[u.ID] {
			return fmt.Errorf("duplicate staff id: %s", u.ID)
		}
		seen[u.ID] = true

		switch u.Role {
		case moderation.RoleAdmin, moderation.RoleSuperAdmin:
		default:
			return fmt.Errorf("staff user %s has invalid role %q", u.ID, u.Role)
		}
	}
	return nil
}

// Service merges the staff config with a persistent user store. It
// implements the engine's user-directory contract; the staff role always
// wins over whatever role the store carries.
type Service struct {
	mu         sync.RWMutex
	configPath string
	staff      map[string]*StaffUser

	store moderation.UserDirectory
}

var _ moderation.UserDirectory = (*Service)(nil)

// NewService creates a directory service.
// If configPath is empty, no staff roles are configured and every user
// resolves to the role stored in the backing directory.
func NewService(configPath string, store moderation.UserDirectory) (*Service, error) {
	s := &Service{
		configPath: configPath,
		staff:      make(map[string]*StaffUser),
		store:      store,
	}

	if configPath == "" {
		log.Info().Msg("directory: no staff config path provided, no staff roles")
		return s, nil
	}

	if err := s.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load staff config: %w", err)
	}

	return s, nil
}

// loadConfig reads and parses the config file
func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", s.configPath).Msg("directory: staff config file not found, no staff roles")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	staff := make(map[string]*StaffUser, len(config.Staff))
	for i := range config.Staff {
		u := &config.Staff[i]
		staff[u.ID] = u
	}

	s.mu.Lock()
	s.staff = staff
	s.mu.Unlock()

	log.Info().
		Int("staff", len(staff)).
		Str("path", s.configPath).
		Msg("directory: staff config loaded")

	return nil
}

// Reload reloads the staff configuration from disk.
func (s *Service) Reload() error {
	if s.configPath == "" {
		return nil
	}
	return s.loadConfig()
}

// staffEntry returns the configured staff record for id, if any.
func (s *Service) staffEntry(id string) (*StaffUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.staff[id]
	if !ok {
		return nil, false
	}
	userCopy := *u
	return &userCopy, true
}

// IsStaff returns true if the given id holds a configured staff role.
func (s *Service) IsStaff(id string) bool {
	_, ok := s.staffEntry(id)
	return ok
}

// RoleOf resolves the moderation role for id: staff config first, then the
// backing store, then the reporter default.
func (s *Service) RoleOf(ctx context.Context, id string) moderation.Role {
	if staff, ok := s.staffEntry(id); ok {
		return staff.Role
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil || user.Role == "" {
		return moderation.RoleReporter
	}
	return user.Role
}

// FindByID looks up the user in the backing store and overlays the staff
// role. Staff members absent from the store still resolve, so a fresh
// deployment is usable before any users are synced.
func (s *Service) FindByID(ctx context.Context, id string) (*moderation.User, error) {
	staff, isStaff := s.staffEntry(id)

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, moderation.ErrNotFound) && isStaff {
			return &moderation.User{
				ID:       staff.ID,
				Name:     staff.Name,
				Email:    staff.Email,
				Role:     staff.Role,
				IsActive: true,
			}, nil
		}
		return nil, err
	}

	if isStaff {
		user.Role = staff.Role
	} else if user.Role == "" {
		user.Role = moderation.RoleReporter
	}
	return user, nil
}

// FindByEmail looks up the user by email and overlays the staff role.
func (s *Service) FindByEmail(ctx context.Context, email string) (*moderation.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if staff, ok := s.staffEntry(user.ID); ok {
		user.Role = staff.Role
	} else if user.Role == "" {
		user.Role = moderation.RoleReporter
	}
	return user, nil
}

// SetBlocked delegates to the backing store.
func (s *Service) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return s.store.SetBlocked(ctx, id, blocked)
}

// SetActive delegates to the backing store.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.store.SetActive(ctx, id, active)
}

// SetRole writes the role to the backing store. A staff config entry for
// the same id still takes precedence until the config is changed.
func (s *Service) SetRole(ctx context.Context, id string, role moderation.Role) error {
	if s.IsStaff(id) {
		log.Warn().Str("user_id", id).Msg("directory: role change for staff-configured user, config still wins")
	}
	return s.store.SetRole(ctx, id, role)
}

// ListStaff returns the configured staff users.
func (s *Service) ListStaff() []StaffUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.staff) == 0 {
		return nil
	}
	result := make([]StaffUser, 0, len(s.staff))
	for _, u := range s.staff {
		result = append(result, *u)
	}
	return result
}
