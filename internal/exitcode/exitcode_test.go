package exitcode

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code)
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"not authenticated", errors.NewNotAuthenticatedError(), AuthError},
		{"not authorized", errors.NewNotAuthorizedError("users"), AuthError},
		{"login failed", errors.NewLoginFailedError("Invalid credentials"), AuthError},
		{"network", errors.NewNetworkError("http://localhost:8000/api", stderrors.New("refused")), NetworkError},
		{"config", errors.NewConfigInvalidError("timeout must be positive"), UsageError},
		{"store", errors.NewStoreCorruptError("token", stderrors.New("bad")), GeneralError},
		{"usage", errors.NewUsageError("--id-token or --code is required"), UsageError},
		{"malformed response", errors.New(errors.ErrCodeAPIMalformedResponse, "bad body"), GeneralError},
		{"wrapped coded error", fmt.Errorf("login: %w", errors.NewNotAuthenticatedError()), AuthError},
		{"api 401", &api.Error{Status: http.StatusUnauthorized, Message: "Unauthenticated."}, AuthError},
		{"api 403", &api.Error{Status: http.StatusForbidden, Message: "Forbidden"}, AuthError},
		{"api 500", &api.Error{Status: http.StatusInternalServerError, Message: "boom"}, GeneralError},
		{"unknown command", stderrors.New(`unknown command "foo" for "fisherman"`), UsageError},
		{"unknown flag", stderrors.New("unknown flag: --foo"), UsageError},
		{"required flag", stderrors.New(`required flag(s) "email" not set`), UsageError},
		{"arg count", stderrors.New("accepts 1 arg(s), received 0"), UsageError},
		{"generic error", stderrors.New("something went wrong"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineExitCode(tt.err))
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	assert.Equal(t, "Success", GetExitCodeDescription(Success))
	assert.Equal(t, "Authentication error", GetExitCodeDescription(AuthError))
	assert.Equal(t, "Network error", GetExitCodeDescription(NetworkError))
	assert.Equal(t, "Unknown error", GetExitCodeDescription(42))
}
