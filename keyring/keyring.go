// Package keyring stores VPN profile passwords. The system keyring is
// preferred; when it is unavailable the passwords live in an encrypted file
// under the application config directory.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	zkeyring "github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"github.com/tunnelguard/tunnelguard/common"
)

const (
	serviceName = "tunnelguard"

	localStoreName = ".credentials"
	// kdfIterations hardens the machine-derived key against offline
	// guessing of the (low entropy) input material.
	kdfIterations = 64000
	kdfKeyLen     = 32
)

var kdfSalt = []byte("tunnelguard-credential-store-v1")

// systemKeyring abstracts the OS keyring so tests can run without one.
type systemKeyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Set(service, user, password string) error { return zkeyring.Set(service, user, password) }
func (osKeyring) Get(service, user string) (string, error) { return zkeyring.Get(service, user) }
func (osKeyring) Delete(service, user string) error        { return zkeyring.Delete(service, user) }

// Store holds per-profile passwords, keyed by profile ID.
type Store struct {
	sys      systemKeyring
	useLocal bool

	mu    sync.Mutex
	local map[string]string
	file  string
	key   []byte
}

// NewStore probes the system keyring and falls back to encrypted local
// storage in configDir when it is unusable.
func NewStore(configDir string) *Store {
	s := &Store{sys: osKeyring{}}

	probe := serviceName + "-probe"
	if err := s.sys.Set(serviceName, probe, "probe"); err == nil {
		s.sys.Delete(serviceName, probe)
		return s
	}

	common.LogWarn("System keyring unavailable, using encrypted local credential store")
	s.useLocal = true
	s.initLocal(configDir)
	return s
}

// NewLocalStore creates a store that never touches the system keyring.
// Used in tests and on headless hosts.
func NewLocalStore(configDir string) *Store {
	s := &Store{useLocal: true}
	s.initLocal(configDir)
	return s
}

func (s *Store) initLocal(configDir string) {
	os.MkdirAll(configDir, 0700)
	s.file = filepath.Join(configDir, localStoreName)
	s.key = deriveKey()
	s.local = make(map[string]string)
	s.loadLocal()
}

// deriveKey stretches machine-specific identifiers into the file encryption
// key. The protection level matches what the data needs: it keeps passwords
// out of casual reach, not out of the hands of root on the same machine.
func deriveKey() []byte {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%s-%d", serviceName, hostname, machineID(), os.Getuid())
	return pbkdf2.Key([]byte(secret), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		return "default-machine-id"
	}
	return strings.TrimSpace(string(data))
}

// Set saves the password for a profile.
func (s *Store) Set(profileID, password string) error {
	if profileID == "" {
		return errors.New("profile ID cannot be empty")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if !s.useLocal {
		if err := s.sys.Set(serviceName, profileID, password); err == nil {
			return nil
		}
		common.LogWarn("System keyring write failed, switching to local credential store")
		s.useLocal = true
		if s.local == nil {
			dir, err := common.ConfigDir()
			if err != nil {
				return common.WrapError(common.ErrCredentialStorage, err.Error())
			}
			s.initLocal(dir)
		}
	}

	s.mu.Lock()
	s.local[profileID] = password
	s.mu.Unlock()
	return s.saveLocal()
}

// Get retrieves the password for a profile.
func (s *Store) Get(profileID string) (string, error) {
	if profileID == "" {
		return "", errors.New("profile ID cannot be empty")
	}

	if !s.useLocal {
		password, err := s.sys.Get(serviceName, profileID)
		if err == nil {
			return password, nil
		}
		return "", common.ErrCredentialsNotFound
	}

	s.mu.Lock()
	password, ok := s.local[profileID]
	s.mu.Unlock()
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return password, nil
}

// Delete removes the password for a profile. Deleting an absent credential
// is not an error.
func (s *Store) Delete(profileID string) error {
	if profileID == "" {
		return errors.New("profile ID cannot be empty")
	}

	if !s.useLocal {
		s.sys.Delete(serviceName, profileID)
		return nil
	}

	s.mu.Lock()
	delete(s.local, profileID)
	s.mu.Unlock()
	return s.saveLocal()
}

// Exists reports whether a credential is stored for the profile.
func (s *Store) Exists(profileID string) bool {
	_, err := s.Get(profileID)
	return err == nil
}

func (s *Store) loadLocal() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return
	}
	plaintext, err := s.decrypt(data)
	if err != nil {
		common.LogWarn("Could not decrypt local credential store, starting empty: %v", err)
		return
	}
	json.Unmarshal(plaintext, &s.local)
}

func (s *Store) saveLocal() error {
	s.mu.Lock()
	data, err := json.Marshal(s.local)
	s.mu.Unlock()
	if err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}

	encrypted, err := s.encrypt(data)
	if err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	if err := os.WriteFile(s.file, encrypted, 0600); err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return nil
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
