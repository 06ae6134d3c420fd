package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/term"

	"viberunner/pkg/logx"
)

// Secret names.
const (
	SecretGitHub    = "GITHUB_TOKEN"
	SecretGoogle    = "GOOGLE_API_KEY"
	SecretOpenAI    = "OPENAI_API_KEY"
	SecretDeepSeek  = "DEEPSEEK_API_KEY"
	SecretAnthropic = "ANTHROPIC_API_KEY"

	// PasswordEnv unlocks the secrets file without a prompt.
	PasswordEnv = "VIBE_PASSWORD"
)

// RequiredSecrets must resolve before a run starts.
func RequiredSecrets() []string {
	return []string{SecretGitHub, SecretGoogle}
}

// Secrets file configuration.
const (
	secretsFileName = "secrets.json.enc"
	saltSize        = 16
	nonceSize       = 12
	scryptN         = 32768 // 2^15
	scryptR         = 8
	scryptP         = 1
	keySize         = 32 // AES-256
)

// ErrWrongPassword is returned when the secrets file cannot be opened with the given password.
var ErrWrongPassword = errors.New("decryption failed (wrong password or corrupted file)")

// Secrets resolves named secrets: decrypted file values first, then the environment.
type Secrets struct {
	file map[string]string
	env  func(string) string
}

// NewSecrets creates a resolver. env is usually os.Getenv; nil disables the fallback.
func NewSecrets(file map[string]string, env func(string) string) *Secrets {
	if env == nil {
		env = func(string) string { return "" }
	}
	return &Secrets{file: file, env: env}
}

// Get returns a secret value by name.
func (s *Secrets) Get(name string) (string, error) {
	if v := s.Lookup(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s not found in secrets file or environment", name)
}

// Lookup returns the secret or "". A nil resolver has no secrets.
func (s *Secrets) Lookup(name string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.file[name]; ok && v != "" {
		return v
	}
	return s.env(name)
}

// Require reports every required secret that does not resolve.
func (s *Secrets) Require(names ...string) error {
	var errs ValidationErrors
	for _, name := range names {
		if s.Lookup(name) == "" {
			errs = append(errs, ValidationError{Field: name, Value: "", Message: "secret is required"})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// FileNames returns the names stored in the decrypted file, sorted.
func (s *Secrets) FileNames() []string {
	names := make([]string, 0, len(s.file))
	for name := range s.file {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SecretsPath is the encrypted secrets file inside stateDir.
func SecretsPath(stateDir string) string {
	return filepath.Join(stateDir, secretsFileName)
}

// SecretsFileExists checks if the secrets file exists in stateDir.
func SecretsFileExists(stateDir string) bool {
	_, err := os.Stat(SecretsPath(stateDir))
	return err == nil
}

// PasswordPrompt asks the user for the secrets password.
type PasswordPrompt func() (string, error)

// TerminalPrompt reads a password from the controlling terminal without echo.
func TerminalPrompt() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set %s", PasswordEnv)
	}
	fmt.Fprint(os.Stderr, "🔒 Secrets password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// ResolvePassword takes the password from PasswordEnv, else asks prompt.
func ResolvePassword(env func(string) string, prompt PasswordPrompt) (string, error) {
	if env != nil {
		if pw := env(PasswordEnv); pw != "" {
			return pw, nil
		}
	}
	if prompt == nil {
		return "", fmt.Errorf("no password available; set %s", PasswordEnv)
	}
	return prompt()
}

// LoadSecrets decrypts the secrets file when stateDir has one and layers the
// environment under it.
func LoadSecrets(stateDir string, env func(string) string, prompt PasswordPrompt) (*Secrets, error) {
	if !SecretsFileExists(stateDir) {
		return NewSecrets(nil, env), nil
	}
	password, err := ResolvePassword(env, prompt)
	if err != nil {
		return nil, err
	}
	values, err := DecryptSecretsFile(stateDir, password)
	if err != nil {
		return nil, err
	}
	logx.NewLogger("config").Info("🔒 Loaded %d secrets from %s", len(values), SecretsPath(stateDir))
	return NewSecrets(values, env), nil
}

// SetSecretInFile adds or replaces one secret in the encrypted file, creating it if needed.
func SetSecretInFile(stateDir, password, name, value string) error {
	values := map[string]string{}
	if SecretsFileExists(stateDir) {
		existing, err := DecryptSecretsFile(stateDir, password)
		if err != nil {
			return err
		}
		values = existing
	}
	values[name] = value
	return EncryptSecretsFile(stateDir, password, values)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// EncryptSecretsFile encrypts and saves secrets to <stateDir>/secrets.json.enc
// with 0600 permissions. Layout: [salt][nonce][ciphertext+tag].
func EncryptSecretsFile(stateDir, password string, secrets map[string]string) error {
	passwordBytes := []byte(password)
	defer zero(passwordBytes)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key(passwordBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer zero(key)

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}
	defer zero(plaintext)

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	fileData := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	fileData = append(fileData, salt...)
	fileData = append(fileData, nonce...)
	fileData = append(fileData, ciphertext...)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", stateDir, err)
	}
	if err := os.WriteFile(SecretsPath(stateDir), fileData, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile decrypts and returns secrets from <stateDir>/secrets.json.enc.
func DecryptSecretsFile(stateDir, password string) (map[string]string, error) {
	path := SecretsPath(stateDir)
	logger := logx.NewLogger("config")

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if info.Mode().Perm() != 0o600 {
		logger.Warn("⚠️  Secrets file has incorrect permissions (found: %04o, expected: 0600); fixing", info.Mode().Perm())
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", chmodErr)
		}
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	minSize := saltSize + nonceSize + 16 // GCM tag
	if len(fileData) < minSize {
		return nil, fmt.Errorf("secrets file is corrupted or invalid format (too small)")
	}

	salt := fileData[:saltSize]
	nonce := fileData[saltSize : saltSize+nonceSize]
	ciphertext := fileData[saltSize+nonceSize:]

	passwordBytes := []byte(password)
	defer zero(passwordBytes)

	key, err := scrypt.Key(passwordBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive decryption key: %w", err)
	}
	defer zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	defer zero(plaintext)

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	return secrets, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
