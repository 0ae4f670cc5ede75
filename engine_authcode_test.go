package authd

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAuthcodeLoginFlow(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, func(b *Builder) {
		b.WithMailer(mailer).WithCodeGenerator(func() string { return "fixed-code-01" })
	})
	ctx := context.Background()

	if err := engine.CreateAuthcode(ctx, testUserEmail, true); err != nil {
		t.Fatalf("create authcode: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != testUserEmail+":fixed-code-01" {
		t.Fatalf("deliveries = %v", mailer.sent)
	}

	pair, err := engine.ExchangeAuthcode(ctx, testUserEmail, "fixed-code-01")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	check, err := engine.CheckAccessToken(ctx, pair.AccessToken, NoMinimumRole, true)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if check.UserID != testUserID {
		t.Fatalf("user = %q, want %q", check.UserID, testUserID)
	}
}

func TestAuthcodeSingleUse(t *testing.T) {
	engine := newTestEngine(t, func(b *Builder) {
		b.WithCodeGenerator(func() string { return "fixed-code-01" })
	})
	ctx := context.Background()

	if err := engine.CreateAuthcode(ctx, testUserEmail, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.CheckAuthcode(ctx, testUserEmail, "fixed-code-01"); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if _, err := engine.CheckAuthcode(ctx, testUserEmail, "fixed-code-01"); !errors.Is(err, ErrInvalidAuthcode) {
		t.Fatalf("second check: %v, want %v", err, ErrInvalidAuthcode)
	}
}

func TestAuthcodeWrongCodeOrEmail(t *testing.T) {
	engine := newTestEngine(t, func(b *Builder) {
		b.WithCodeGenerator(func() string { return "fixed-code-01" })
	})
	ctx := context.Background()

	if err := engine.CreateAuthcode(ctx, testUserEmail, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.CheckAuthcode(ctx, testUserEmail, "wrong-code-99"); !errors.Is(err, ErrInvalidAuthcode) {
		t.Fatalf("wrong code: %v", err)
	}
	if _, err := engine.CheckAuthcode(ctx, testAdminMail, "fixed-code-01"); !errors.Is(err, ErrInvalidAuthcode) {
		t.Fatalf("wrong email: %v", err)
	}
	// The failed attempts did not consume the code.
	if _, err := engine.CheckAuthcode(ctx, testUserEmail, "fixed-code-01"); err != nil {
		t.Fatalf("correct pair after misses: %v", err)
	}
}

func TestAuthcodeUnknownUser(t *testing.T) {
	engine := newTestEngine(t)

	err := engine.CreateAuthcode(context.Background(), "nobody@example.com", false)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("create for unknown user: %v, want %v", err, ErrUserNotFound)
	}
}

func TestAuthcodeRateLimit(t *testing.T) {
	n := 0
	engine := newTestEngine(t, func(b *Builder) {
		b.WithCodeGenerator(func() string { n++; return fmt.Sprintf("code-%08d", n) })
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := engine.CreateAuthcode(ctx, testUserEmail, false); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if err := engine.CreateAuthcode(ctx, testUserEmail, false); !errors.Is(err, ErrTooManyAuthcodes) {
		t.Fatalf("sixth create: %v, want %v", err, ErrTooManyAuthcodes)
	}

	// Other addresses are not affected.
	if err := engine.CreateAuthcode(ctx, testAdminMail, false); err != nil {
		t.Fatalf("create for other email: %v", err)
	}
}

func TestAuthcodeDeliveryFailureKeepsCode(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	engine := newTestEngine(t, func(b *Builder) {
		b.WithMailer(mailer).WithCodeGenerator(func() string { return "fixed-code-01" })
	})
	ctx := context.Background()

	if err := engine.CreateAuthcode(ctx, testUserEmail, true); err == nil {
		t.Fatal("expected delivery error")
	}
	// The code was stored before delivery was attempted.
	if _, err := engine.CheckAuthcode(ctx, testUserEmail, "fixed-code-01"); err != nil {
		t.Fatalf("check after failed delivery: %v", err)
	}
}

func TestAuthcodeSkipDelivery(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, func(b *Builder) {
		b.WithMailer(mailer)
	})

	if err := engine.CreateAuthcode(context.Background(), testUserEmail, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("deliveries = %v, want none", mailer.sent)
	}
}
