package villages

import "testing"

func TestLikeEscaper(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Mamelodi", "Mamelodi"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{"%_", `\%\_`},
		{"", ""},
	}

	for _, tc := range cases {
		if got := likeEscaper.Replace(tc.in); got != tc.want {
			t.Fatalf("escape %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
