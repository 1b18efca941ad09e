package setup

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/credential"
	"github.com/nhle/evaldash/internal/model"
)

type secrets map[string]string

func (s secrets) set(key, value string) error {
	s[key] = value
	return nil
}

func newModel(t *testing.T) (Model, string, secrets) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	got := secrets{}
	return New(model.DefaultAppConfig(), path, 100, 40, WithSecretWriter(got.set)), path, got
}

func TestSaveREST(t *testing.T) {
	m, path, got := newModel(t)
	m.fields.backend = model.BackendREST
	m.fields.baseURL = " https://dash.example.com/ "
	m.fields.token = "tok"
	m.fields.userID = "u1"
	m.fields.schoolIDs = "s1, ,s2"

	res := m.save()().(savedInternalMsg)
	require.NoError(t, res.err)
	assert.Equal(t, "https://dash.example.com", res.cfg.API.BaseURL)
	assert.Equal(t, []string{"s1", "s2"}, res.cfg.Session.SchoolIDs)
	assert.Equal(t, "tok", got[credential.KeyRESTToken])

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, model.BackendREST, loaded.API.Backend)
	assert.Equal(t, "u1", loaded.Session.UserID)

	_, cmd := m.Update(res)
	require.NotNil(t, cmd)
	assert.Equal(t, SavedMsg{Config: res.cfg}, cmd())
}

func TestSaveIMAPKeepsStoredPassword(t *testing.T) {
	m, _, got := newModel(t)
	m.fields.backend = model.BackendIMAP
	m.fields.imapHost = "imap.example.com"
	m.fields.imapUser = "parent@example.com"

	res := m.save()().(savedInternalMsg)
	require.NoError(t, res.err)
	assert.Equal(t, "993", res.cfg.API.IMAP.Port)
	assert.Empty(t, got)
}

func TestSaveInvalidConfig(t *testing.T) {
	m, path, _ := newModel(t)
	m.fields.backend = model.BackendREST
	m.fields.baseURL = ""

	res := m.save()().(savedInternalMsg)
	require.Error(t, res.err)
	assert.NoFileExists(t, path)

	m, _ = m.Update(res)
	assert.Contains(t, m.View(), "Save failed")
}

func TestSaveSecretError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := New(model.DefaultAppConfig(), path, 100, 40, WithSecretWriter(func(string, string) error {
		return errors.New("keyring locked")
	}))
	m.fields.backend = model.BackendREST
	m.fields.baseURL = "https://dash.example.com"
	m.fields.token = "tok"

	res := m.save()().(savedInternalMsg)
	assert.ErrorContains(t, res.err, "keyring locked")
	assert.NoFileExists(t, path)
}

func TestBaseConfigUntouched(t *testing.T) {
	base := model.DefaultAppConfig()
	m := New(base, filepath.Join(t.TempDir(), "c.yaml"), 100, 40)
	m.fields.backend = model.BackendREST
	m.fields.schoolIDs = "s9"

	cfg := m.config()
	assert.Equal(t, model.BackendREST, cfg.API.Backend)
	assert.Equal(t, model.BackendSQLite, base.API.Backend)
	assert.Empty(t, base.Session.SchoolIDs)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("https://example.com"))
	assert.Error(t, validateURL("example.com"))
	assert.Error(t, validateURL(""))

	assert.NoError(t, validatePort("993"))
	assert.Error(t, validatePort("imap"))
	assert.Error(t, validatePort("70000"))

	assert.Error(t, validateRequired("Host")("  "))
}
