package vpn

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tunnelguard/tunnelguard/common"
)

// Profile is a named tunnel definition. The configuration file is copied
// into the application directory when the profile is added, so the profile
// stays usable if the original file moves.
type Profile struct {
	// ID is a unique identifier (UUID).
	ID string
	// Name is the human-readable profile name, unique across profiles.
	Name string
	// ConfigPath points at the staged tunnel configuration file.
	ConfigPath string
	// Username is the optional username for auth-user-pass profiles.
	Username string
	// SavePassword indicates whether the password lives in the keyring.
	SavePassword bool
	// Created is when the profile was added.
	Created time.Time
	// LastUsed is when the profile last carried a connection.
	LastUsed time.Time
}

// ProfileStore persists profiles in a SQLite database under the config
// directory.
type ProfileStore struct {
	db        *sql.DB
	configDir string
}

const profileSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	config_path   TEXT NOT NULL,
	username      TEXT NOT NULL DEFAULT '',
	save_password INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	last_used     INTEGER NOT NULL DEFAULT 0
);`

// NewProfileStore opens (creating if needed) the profile database in the
// application config directory.
func NewProfileStore() (*ProfileStore, error) {
	dir, err := common.ConfigDir()
	if err != nil {
		return nil, err
	}
	return OpenProfileStore(filepath.Join(dir, common.ProfilesDBName), dir)
}

// OpenProfileStore opens a profile database at an explicit path. configDir
// is where staged configuration copies live.
func OpenProfileStore(dbPath, configDir string) (*ProfileStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}
	if _, err := db.Exec(profileSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize profile database: %w", err)
	}
	return &ProfileStore{db: db, configDir: configDir}, nil
}

// Close closes the underlying database.
func (s *ProfileStore) Close() error { return s.db.Close() }

// Add validates the referenced configuration file, stages a private copy,
// and persists the profile. The profile's ID is assigned here.
func (s *ProfileStore) Add(p *Profile) error {
	data, err := os.ReadFile(p.ConfigPath)
	if err != nil {
		return common.WrapError(common.ErrConfigUnreadable, err.Error())
	}
	if result := ValidateConfig(string(data)); !result.IsValid {
		return common.WrapError(common.ErrConfigInvalid, result.ErrorMessage)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Created = time.Now()

	configsDir := filepath.Join(s.configDir, "configs")
	if err := os.MkdirAll(configsDir, 0700); err != nil {
		return fmt.Errorf("failed to create configs directory: %w", err)
	}
	staged := filepath.Join(configsDir, p.ID+common.ProfileConfigExt)
	if err := os.WriteFile(staged, data, 0600); err != nil {
		return fmt.Errorf("failed to stage config file: %w", err)
	}
	p.ConfigPath = staged

	_, err = s.db.Exec(
		`INSERT INTO profiles (id, name, config_path, username, save_password, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		p.ID, p.Name, p.ConfigPath, p.Username, boolToInt(p.SavePassword), p.Created.Unix(),
	)
	if err != nil {
		os.Remove(staged)
		if strings.Contains(err.Error(), "UNIQUE") {
			return common.ErrDuplicateName
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Remove deletes a profile and its staged configuration file.
func (s *ProfileStore) Remove(id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := os.Remove(p.ConfigPath); err != nil && !os.IsNotExist(err) {
		common.LogWarn("Could not remove staged config for %s: %v", p.Name, err)
	}
	return nil
}

// Get retrieves a profile by ID.
func (s *ProfileStore) Get(id string) (*Profile, error) {
	return s.scanOne(`SELECT id, name, config_path, username, save_password, created_at, last_used
		FROM profiles WHERE id = ?`, id)
}

// GetByName retrieves a profile by its exact name.
func (s *ProfileStore) GetByName(name string) (*Profile, error) {
	return s.scanOne(`SELECT id, name, config_path, username, save_password, created_at, last_used
		FROM profiles WHERE name = ?`, name)
}

// Find resolves a profile by name, full ID, or ID prefix,
// case-insensitively.
func (s *ProfileStore) Find(nameOrID string) (*Profile, error) {
	needle := strings.ToLower(strings.TrimSpace(nameOrID))
	profiles, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if strings.ToLower(p.Name) == needle ||
			strings.ToLower(p.ID) == needle ||
			strings.HasPrefix(strings.ToLower(p.ID), needle) {
			return p, nil
		}
	}
	return nil, common.ErrProfileNotFound
}

// List returns all profiles ordered by name.
func (s *ProfileStore) List() ([]*Profile, error) {
	rows, err := s.db.Query(`SELECT id, name, config_path, username, save_password, created_at, last_used
		FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// MarkUsed updates the profile's last-used timestamp.
func (s *ProfileStore) MarkUsed(id string) error {
	res, err := s.db.Exec(`UPDATE profiles SET last_used = ? WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrProfileNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *ProfileStore) scanOne(query string, arg interface{}) (*Profile, error) {
	p, err := scanProfile(s.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrProfileNotFound
	}
	return p, err
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var savePassword int
	var created, lastUsed int64
	if err := row.Scan(&p.ID, &p.Name, &p.ConfigPath, &p.Username, &savePassword, &created, &lastUsed); err != nil {
		return nil, err
	}
	p.SavePassword = savePassword != 0
	p.Created = time.Unix(created, 0)
	if lastUsed > 0 {
		p.LastUsed = time.Unix(lastUsed, 0)
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
