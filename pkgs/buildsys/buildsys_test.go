package buildsys

import (
	"errors"
	"slices"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"C", C, false},
		{"cxx", CXX, false},
		{" CXX ", CXX, false},
		{"c++", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLanguage(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestLanguageToolchain(t *testing.T) {
	if C.CompilerEnv() != "CC" || CXX.CompilerEnv() != "CXX" {
		t.Errorf("CompilerEnv: C=%s CXX=%s", C.CompilerEnv(), CXX.CompilerEnv())
	}
	if !slices.Equal(C.Extensions(), []string{".c"}) {
		t.Errorf("C extensions = %v", C.Extensions())
	}
	if !slices.Contains(CXX.Extensions(), ".cpp") {
		t.Errorf("CXX extensions = %v", CXX.Extensions())
	}
	if LinkedTarget("prog") != "prog_linked" {
		t.Errorf("LinkedTarget = %q", LinkedTarget("prog"))
	}
}

func TestExecError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := error(&ExecError{Args: []string{"cmake", "--build", "b"}, Output: "no rule", Err: cause})
	if got := err.Error(); got != "cmake --build b: exit status 1" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("ExecError does not unwrap")
	}
}
