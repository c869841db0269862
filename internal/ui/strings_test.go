package ui

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"  padded  ", 0, "padded"},
		{"abcdef", 3, "abc"},
		{"ñandú azul", 6, "ñan..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestTruncateMiddleKeepsTail(t *testing.T) {
	got := truncateMiddle("/home/user/.local/share/invbf/invbf.log", 20)
	if len([]rune(got)) != 20 {
		t.Fatalf("len = %d, want 20 (%q)", len([]rune(got)), got)
	}
	if got[len(got)-9:] != "invbf.log" {
		t.Fatalf("truncateMiddle lost the file name: %q", got)
	}
}

func TestPadding(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Fatalf("padRight = %q", got)
	}
	if got := padRight("abcdefgh", 6); got != "abc..." {
		t.Fatalf("padRight long = %q", got)
	}
	if got := padLeft("7", 3); got != "  7" {
		t.Fatalf("padLeft = %q", got)
	}
	if got := padLeft("1234", 3); got != "1234" {
		t.Fatalf("padLeft long = %q", got)
	}
}

func TestFormatSigned(t *testing.T) {
	for n, want := range map[int]string{3: "+3", 0: "0", -2: "-2"} {
		if got := formatSigned(n); got != want {
			t.Errorf("formatSigned(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{0, 0, 0},
		{-1, 5, 0},
		{2, 5, 2},
		{5, 5, 4},
		{9, 1, 0},
	}
	for _, tt := range tests {
		if got := clamp(tt.i, tt.n); got != tt.want {
			t.Errorf("clamp(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		name               string
		sel, n, rows       int
		wantStart, wantEnd int
	}{
		{"fits", 3, 5, 10, 0, 5},
		{"top", 0, 20, 5, 0, 5},
		{"middle", 10, 20, 5, 8, 13},
		{"bottom", 19, 20, 5, 15, 20},
	}
	for _, tt := range tests {
		start, end := visibleWindow(tt.sel, tt.n, tt.rows)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("%s: visibleWindow = [%d,%d), want [%d,%d)", tt.name, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if got := []rune(progressBar(50, 10)); len(got) != 10 || got[4] != '█' || got[5] != '░' {
		t.Fatalf("progressBar(50, 10) = %q", string(got))
	}
	if got := []rune(progressBar(150, 4)); string(got) != "████" {
		t.Fatalf("progressBar clamps high: %q", string(got))
	}
	if progressBar(10, 0) != "" {
		t.Fatal("zero width should render nothing")
	}
}
