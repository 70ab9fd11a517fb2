package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	Iterations = 1000
}

func TestHashPassword_Format(t *testing.T) {
	h, err := HashPassword("hunter2")
	require.NoError(t, err)

	parts := strings.Split(h, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "pbkdf2:sha256:1000", parts[0])
	assert.Len(t, parts[1], saltLength)
	assert.Len(t, parts[2], 64)

	ok, err := CheckPassword(h, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(h, "hunter3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltDiffers(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCheckPassword_KnownHashes(t *testing.T) {
	bc, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name string
		hash string
	}{
		{"pbkdf2 sha256", "pbkdf2:sha256:1000$abcdEFGH12345678$cc24ff29f35b6d6bb8293d0958f445a47577fc763f54ba9520d022a6c813d2fd"},
		{"pbkdf2 sha512", "pbkdf2:sha512:1000$saltsaltsaltsalt$b8706288f7481e0adb88c86807657ff5ad299587c282f6eb0510c3160d58cc2945e34f311411ea522b5fec49b663c1be459e36a81e9c6b79f3af579fdd5b708c"},
		{"scrypt", "scrypt:1024:8:1$saltysaltysalty1$4b98e020faedb98490c137788e3628f6aa40be0a3f7df6373bf116193ffaa33b9cba25361c2855caca866efa74d585da7d7062aefa961921995d9d1cfe247747"},
		{"bcrypt", string(bc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := CheckPassword(tt.hash, "hunter2")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = CheckPassword(tt.hash, "wrong")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCheckPassword_UnknownFormat(t *testing.T) {
	for _, h := range []string{"", "plaintext", "md5$salt$abcd", "pbkdf2:sha1:10$s$abcd", "pbkdf2:sha256:x$s$ab", "pbkdf2:sha256:10$s$zz"} {
		_, err := CheckPassword(h, "pw")
		assert.ErrorIs(t, err, ErrUnknownHashFormat, h)
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer("secret", 0)
	tok, err := iss.Issue(42)
	require.NoError(t, err)

	id, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestIssuer_Claims(t *testing.T) {
	iss := NewIssuer("secret", 0)
	tok, err := iss.Issue(7)
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestIssuer_Expired(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := iss.Issue(1)
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestIssuer_WrongKey(t *testing.T) {
	tok, err := NewIssuer("one", 0).Issue(1)
	require.NoError(t, err)

	_, err = NewIssuer("two", 0).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssuer_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewIssuer("secret", 0).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMiddleware(t *testing.T) {
	iss := NewIssuer("secret", 0)
	good, err := iss.Issue(5)
	require.NoError(t, err)

	h := iss.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		require.True(t, ok)
		assert.Equal(t, 5, id)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{"valid", "Bearer " + good, http.StatusNoContent, ""},
		{"missing", "", http.StatusUnauthorized, "Missing Authorization Header"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Bad Authorization header. Expected 'Authorization: Bearer <JWT>'"},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, "Signature verification failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.msg != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.msg, body["msg"])
			}
		})
	}
}

func TestMiddleware_Expired(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := iss.Issue(1)
	require.NoError(t, err)

	h := iss.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token has expired")
}

func TestUserID_Missing(t *testing.T) {
	_, ok := UserID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
