package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestEncryptDecryptSecretsFile(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		SecretGitHub: "ghp_test123",
		SecretGoogle: "AIza-test",
	}

	require.NoError(t, EncryptSecretsFile(dir, "hunter2", secrets))

	info, err := os.Stat(SecretsPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := DecryptSecretsFile(dir, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, secrets, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "right", map[string]string{"A": "b"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	assert.True(t, errors.Is(err, ErrWrongPassword))
}

func TestDecryptFixesPermissions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"A": "b"}))
	require.NoError(t, os.Chmod(SecretsPath(dir), 0o644))

	_, err := DecryptSecretsFile(dir, "pw")
	require.NoError(t, err)

	info, err := os.Stat(SecretsPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDecryptTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(SecretsPath(dir), []byte("short"), 0o600))

	_, err := DecryptSecretsFile(dir, "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestSetSecretInFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SetSecretInFile(dir, "pw", SecretGitHub, "one"))
	require.NoError(t, SetSecretInFile(dir, "pw", SecretGoogle, "two"))
	require.NoError(t, SetSecretInFile(dir, "pw", SecretGitHub, "three"))

	got, err := DecryptSecretsFile(dir, "pw")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{SecretGitHub: "three", SecretGoogle: "two"}, got)

	assert.Error(t, SetSecretInFile(dir, "other", SecretGitHub, "x"))
}

func TestSecretsLookupPrefersFile(t *testing.T) {
	s := NewSecrets(
		map[string]string{SecretGitHub: "from-file"},
		envOf(map[string]string{SecretGitHub: "from-env", SecretGoogle: "env-only"}),
	)

	assert.Equal(t, "from-file", s.Lookup(SecretGitHub))
	assert.Equal(t, "env-only", s.Lookup(SecretGoogle))
	assert.Empty(t, s.Lookup(SecretOpenAI))

	_, err := s.Get(SecretOpenAI)
	assert.Error(t, err)

	var nilSecrets *Secrets
	assert.Empty(t, nilSecrets.Lookup(SecretGitHub))
}

func TestSecretsRequire(t *testing.T) {
	s := NewSecrets(nil, envOf(map[string]string{SecretGitHub: "t"}))
	assert.NoError(t, s.Require(SecretGitHub))

	err := s.Require(RequiredSecrets()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SecretGoogle)
	assert.NotContains(t, err.Error(), SecretGitHub+":")
}

func TestLoadSecrets(t *testing.T) {
	t.Run("no file falls back to env", func(t *testing.T) {
		s, err := LoadSecrets(t.TempDir(), envOf(map[string]string{SecretGoogle: "g"}), nil)
		require.NoError(t, err)
		assert.Equal(t, "g", s.Lookup(SecretGoogle))
	})

	t.Run("password from env", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{SecretGitHub: "tok"}))

		s, err := LoadSecrets(dir, envOf(map[string]string{PasswordEnv: "pw"}), nil)
		require.NoError(t, err)
		assert.Equal(t, "tok", s.Lookup(SecretGitHub))
		assert.Equal(t, []string{SecretGitHub}, s.FileNames())
	})

	t.Run("password from prompt", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{SecretGitHub: "tok"}))

		prompted := false
		prompt := func() (string, error) { prompted = true; return "pw", nil }
		s, err := LoadSecrets(dir, envOf(nil), prompt)
		require.NoError(t, err)
		assert.True(t, prompted)
		assert.Equal(t, "tok", s.Lookup(SecretGitHub))
	})

	t.Run("no password source", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{}))

		_, err := LoadSecrets(dir, envOf(nil), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), PasswordEnv)
	})
}
