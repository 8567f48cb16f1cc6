package domain

import "testing"

func TestAmountFromMajorRounding(t *testing.T) {
	cases := []struct {
		major float64
		want  Amount
	}{
		{0, 0},
		{19.99, 1999},
		{100, 10000},
		{10.006, 1001},
		{10.004, 1000},
		{-10.006, -1001},
		{0.1, 10},
		{1234.56, 123456},
	}
	for _, tc := range cases {
		if got := AmountFromMajor(tc.major); got != tc.want {
			t.Errorf("AmountFromMajor(%v) = %d, want %d", tc.major, got, tc.want)
		}
	}
}

func TestMajorRoundTrip(t *testing.T) {
	if got := Amount(123456).Major(); got != 1234.56 {
		t.Fatalf("Major() = %v", got)
	}
	if got := Amount(-50).Major(); got != -0.5 {
		t.Fatalf("Major() = %v", got)
	}
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{
		"client":      RoleClient,
		" FREELANCER": RoleFreelancer,
		"Admin":       RoleAdmin,
	} {
		got, err := ParseRole(raw)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
