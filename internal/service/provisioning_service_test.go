package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"Ahmed Ali":          "ahmed.ali",
		"  MONA   el-Sayed ": "mona.el.sayed",
		"Jose Maria 2nd":     "jose.maria.2nd",
		"José":               "jos",
		"أحمد علي":           "student",
		"":                   "student",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeUsername(input), input)
	}
}

func TestGeneratePasswordPolicy(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		password, err := generatePassword()
		require.NoError(t, err)
		assert.Len(t, password, generatedPasswordLength)
		assert.True(t, strings.ContainsAny(password, lowerChars), password)
		assert.True(t, strings.ContainsAny(password, upperChars), password)
		assert.True(t, strings.ContainsAny(password, digitChars), password)
		assert.True(t, strings.ContainsAny(password, symbolChars), password)
		seen[password] = struct{}{}
	}
	assert.Greater(t, len(seen), 45)
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	expectCommit(h.mock)
	creds, err := h.provisioning.Provision(ctx, adminScope, "student-1")
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali", creds.Username)
	assert.NotEmpty(t, creds.Password)

	auditCount := len(h.db.audits)
	expectRollback(h.mock)
	_, err = h.provisioning.Provision(ctx, adminScope, "student-1")
	assert.ErrorIs(t, err, appErrors.ErrAccountExists)
	assert.Len(t, h.db.usersFor("student-1"), 1)
	assert.Len(t, h.db.audits, auditCount)
	assert.NotContains(t, h.db.users[creds.UserID].PasswordHash, creds.Password)
}

func TestEnsureAccountAppendsSuffixOnCollision(t *testing.T) {
	h := newLedgerHarness(t)
	h.db.users["u-1"] = models.User{ID: "u-1", Username: "ahmed.ali"}
	h.db.users["u-2"] = models.User{ID: "u-2", Username: "ahmed.ali1"}

	creds, err := h.provisioning.EnsureAccount(context.Background(), nil, "student-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali2", creds.Username)
}

func TestEnsureAccountRetriesWhenInsertLosesRace(t *testing.T) {
	h := newLedgerHarness(t)
	h.db.dropUserInserts = 1

	creds, err := h.provisioning.EnsureAccount(context.Background(), nil, "student-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali1", creds.Username)
	assert.Len(t, h.db.usersFor("student-1"), 1)
}

func TestEnsureAccountDetectsUserLinkedByStudentID(t *testing.T) {
	h := newLedgerHarness(t)
	h.db.users["u-1"] = models.User{ID: "u-1", Username: "someone", StudentID: strPtr("student-1")}

	_, err := h.provisioning.EnsureAccount(context.Background(), nil, "student-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrAccountExists)
}

func TestProvisionHidesOtherBranches(t *testing.T) {
	h := newLedgerHarness(t)

	expectRollback(h.mock)
	_, err := h.provisioning.Provision(context.Background(), otherBranch, "student-1")
	assert.ErrorIs(t, err, appErrors.ErrStudentNotFound)
	assert.Empty(t, h.db.usersFor("student-1"))
}
