package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housefin/internal/auth"
	"housefin/internal/storage"
)

func adduserArgs(dbPath, username string) []string {
	return []string{"adduser",
		"-db", "sqlite:///" + dbPath,
		"-bcrypt-cost", "4",
		"-username", username,
		"-email", username + "@example.com",
		"-full-name", "Member " + username,
	}
}

func TestAddUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "admin.db")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), adduserArgs(dbPath, "alice"), strings.NewReader("p@ss1234\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "created user alice")

	store, err := storage.Open(context.Background(), storage.Options{Driver: storage.DriverSQLite, DSN: dbPath})
	require.NoError(t, err)
	defer store.Close()

	u, err := store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, auth.VerifyPassword("p@ss1234", u.PasswordHash))
}

func TestAddUserDuplicate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "admin.db")

	require.Equal(t, 0, run(context.Background(), adduserArgs(dbPath, "alice"), strings.NewReader("p@ss1234\n"), &bytes.Buffer{}, &bytes.Buffer{}))

	var stderr bytes.Buffer
	code := run(context.Background(), adduserArgs(dbPath, "alice"), strings.NewReader("p@ss1234\n"), &bytes.Buffer{}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "username already registered")
}

func TestAddUserRejects(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "admin.db")

	tests := []struct {
		name     string
		args     []string
		stdin    string
		wantCode int
		wantErr  string
	}{
		{
			name:     "weak password",
			args:     adduserArgs(dbPath, "bob"),
			stdin:    "short\n",
			wantCode: 1,
			wantErr:  "password",
		},
		{
			name:     "empty password",
			args:     adduserArgs(dbPath, "bob"),
			stdin:    "",
			wantCode: 1,
			wantErr:  "empty password",
		},
		{
			name:     "missing flags",
			args:     []string{"adduser", "-username", "bob"},
			stdin:    "p@ss1234\n",
			wantCode: 2,
			wantErr:  "required",
		},
		{
			name:     "bad database url",
			args:     append(adduserArgs(dbPath, "bob"), "-db", "mysql://nope"),
			stdin:    "p@ss1234\n",
			wantCode: 1,
			wantErr:  "unsupported database URL scheme",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := run(context.Background(), tt.args, strings.NewReader(tt.stdin), &bytes.Buffer{}, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestRunCommands(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage")

	stderr.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"deluser"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "deluser"`)

	assert.Equal(t, 0, run(context.Background(), []string{"help"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "adduser")
}
