package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/store"
)

type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string
	resets     map[string]string
	resetsUsed map[string]bool
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      map[string]store.User{},
		emailIndex: map[string]string{},
		resets:     map[string]string{},
		resetsUsed: map[string]bool{},
	}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	id, ok := m.emailIndex[email]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return m.users[id], nil
}

func (m *mockUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	u, ok := m.users[id]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return u, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(_ context.Context, userID, token string, _ time.Time) error {
	u := m.users[userID]
	u.VerificationToken = token
	m.users[userID] = u
	return nil
}

func (m *mockUserStore) VerifyUserEmail(_ context.Context, token string) error {
	for id, u := range m.users {
		if u.VerificationToken == token && token != "" {
			u.IsEmailVerified = true
			u.VerificationToken = ""
			m.users[id] = u
			return nil
		}
	}
	return errors.New("invalid token")
}

func (m *mockUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	u, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	u.PasswordHash = passwordHash
	m.users[userID] = u
	return nil
}

func (m *mockUserStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	m.resets[token] = userID
	return nil
}

func (m *mockUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	if m.resetsUsed[token] {
		return "", errors.New("used")
	}
	id, ok := m.resets[token]
	if !ok {
		return "", errors.New("not found")
	}
	return id, nil
}

func (m *mockUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	m.resetsUsed[token] = true
	return nil
}

func TestSignUpAndVerify(t *testing.T) {
	ctx := context.Background()
	ms := newMockUserStore()
	svc := NewService(ms)

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "jiyoon@hanbit.example",
		Password:    "seoul-1234",
		DisplayName: "Jiyoon Park",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !resp.RequiresEmailVerify {
		t.Fatal("expected email verification to be required")
	}

	user, err := ms.GetUserByID(ctx, resp.UserID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user.Role != "sales" {
		t.Fatalf("new user role = %q, want sales", user.Role)
	}
	if user.PasswordHash == "seoul-1234" {
		t.Fatal("password stored in plain text")
	}

	// Unverified sign-in is allowed but flagged.
	in, err := svc.SignIn(ctx, SignInRequest{Email: "jiyoon@hanbit.example", Password: "seoul-1234"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !in.RequiresVerify {
		t.Fatal("expected RequiresVerify before verification")
	}

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	in, err = svc.SignIn(ctx, SignInRequest{Email: "jiyoon@hanbit.example", Password: "seoul-1234"})
	if err != nil {
		t.Fatalf("SignIn after verify: %v", err)
	}
	if in.RequiresVerify {
		t.Fatal("still requires verify after VerifyEmail")
	}
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	cases := []struct {
		name string
		req  SignUpRequest
	}{
		{"missing email", SignUpRequest{Password: "seoul-1234", DisplayName: "X"}},
		{"short password", SignUpRequest{Email: "a@b.c", Password: "short", DisplayName: "X"}},
		{"missing name", SignUpRequest{Email: "a@b.c", Password: "seoul-1234"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SignUp(ctx, tc.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	req := SignUpRequest{Email: "dup@hanbit.example", Password: "seoul-1234", DisplayName: "A"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp: %v", err)
	}
	if _, err := svc.SignUp(ctx, req); err == nil {
		t.Fatal("expected duplicate email error")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "seoul-1234", DisplayName: "A"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.c", Password: "wrong-password"}); err == nil {
		t.Fatal("expected invalid credentials error")
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@b.c", Password: "seoul-1234"}); err == nil {
		t.Fatal("expected invalid credentials error for unknown email")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	ms := newMockUserStore()
	svc := NewService(ms)

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "seoul-1234", DisplayName: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatal("expected reset token")
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "busan-5678"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.c", Password: "busan-5678"}); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.c", Password: "seoul-1234"}); err == nil {
		t.Fatal("old password still accepted")
	}

	// Token is single use.
	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "jeju-9999"}); err == nil {
		t.Fatal("expected used token to be rejected")
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	svc := NewService(newMockUserStore())
	token, err := svc.RequestPasswordReset(context.Background(), "ghost@b.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Fatal("unknown email must not yield a token")
	}
}
