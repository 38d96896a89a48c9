package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

const (
	testKey    = "test-secret"
	testIssuer = "sekolahkita"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("u-1", "guru@sekolah.sch.id", "authenticated", testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "guru@sekolah.sch.id", claims.Email)

	_, err = Parse(tok.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
	_, err = Parse(tok.AccessToken, "wrong-key", testIssuer)
	assert.Error(t, err)

	expired, err := Issue("u-1", "x@y", "authenticated", testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: testIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = Parse(unsigned, testKey, testIssuer)
	assert.Error(t, err)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		s := SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"email": s.Email, "user_id": s.UserID})
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	r := newRouter(Authenticate(testKey, testIssuer))
	tok, err := Issue("u-1", "guru@sekolah.sch.id", "authenticated", testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + tok.AccessToken, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + tok.AccessToken, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestOptionalLetsAnonymousThrough(t *testing.T) {
	r := newRouter(Optional(testKey, testIssuer))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"","user_id":""}`, w.Body.String())
}

func TestRequireTeacher(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.Seed(model.TableTeachers, []model.Teacher{{ID: "1", Nama: "Bu Sri", Email: "sri@sekolah.sch.id"}}))
	teachers := NewTeachers(mem)
	log := logrus.NewEntry(logrus.New())

	r := newRouter(Authenticate(testKey, testIssuer), RequireTeacher(teachers, log))

	for _, tt := range []struct {
		email string
		want  int
	}{
		{email: "sri@sekolah.sch.id", want: http.StatusOK},
		{email: "murid@sekolah.sch.id", want: http.StatusForbidden},
	} {
		tok, err := Issue("u-"+tt.email, tt.email, "authenticated", testIssuer, testKey, time.Minute)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.email)
	}

	ok, err := teachers.IsTeacher(context.Background(), session.Anonymous)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGoTrueSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "rahasia" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"jwt","token_type":"bearer","expires_in":3600,
			"user":{"id":"9f1c","email":"sri@sekolah.sch.id","role":"authenticated"}}`)
	}))
	defer srv.Close()

	g := NewGoTrue(srv.URL, "anon")
	sess, exp, err := g.SignIn(context.Background(), "sri@sekolah.sch.id", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, session.Session{UserID: "9f1c", Email: "sri@sekolah.sch.id", Role: "authenticated", AccessToken: "jwt"}, sess)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	_, _, err = g.SignIn(context.Background(), "sri@sekolah.sch.id", "salah")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, _, err = g.SignIn(context.Background(), "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLocalSignIn(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia"), bcrypt.MinCost)
	require.NoError(t, err)

	l, err := NewLocal("Sri@Sekolah.sch.id:"+string(hash), testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	sess, _, err := l.SignIn(context.Background(), "sri@sekolah.sch.id", "rahasia")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())

	claims, err := Parse(sess.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, claims.Subject)
	assert.Equal(t, "sri@sekolah.sch.id", claims.Email)

	_, _, err = l.SignIn(context.Background(), "sri@sekolah.sch.id", "salah")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, _, err = l.SignIn(context.Background(), "lain@sekolah.sch.id", "rahasia")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = NewLocal("no-separator", testIssuer, testKey, time.Minute)
	assert.Error(t, err)
}
