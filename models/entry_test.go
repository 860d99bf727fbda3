package models

import "testing"

func TestKeyNormalization(t *testing.T) {
	tests := []struct {
		name  string
		a     [3]string
		b     [3]string
		equal bool
	}{
		{
			name:  "case and whitespace",
			a:     [3]string{"Dune", "Herbert", "1965"},
			b:     [3]string{"dune ", " HERBERT", " 1965 "},
			equal: true,
		},
		{
			name:  "different year",
			a:     [3]string{"Dune", "Herbert", "1965"},
			b:     [3]string{"Dune", "Herbert", "1966"},
			equal: false,
		},
		{
			name:  "empty year",
			a:     [3]string{"Dune", "Herbert", ""},
			b:     [3]string{"Dune", "Herbert", "  "},
			equal: true,
		},
		{
			name:  "field boundaries",
			a:     [3]string{"ab", "c", ""},
			b:     [3]string{"a", "bc", ""},
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.a[0], tt.a[1], tt.a[2]) == Key(tt.b[0], tt.b[1], tt.b[2])
			if got != tt.equal {
				t.Fatalf("Key(%q) == Key(%q) is %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
		ok       bool
	}{
		{input: "Found", expected: StatusFound, ok: true},
		{input: "Not Found", expected: StatusNotFound, ok: true},
		{input: "Error", expected: StatusError, ok: true},
		{input: " Found ", expected: StatusFound, ok: true},
		{input: "Search Failed: 500", expected: StatusError, ok: false},
		{input: "", expected: StatusError, ok: false},
		{input: "found", expected: StatusError, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ResolveStatus(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Fatalf("ResolveStatus(%q) = %q/%v, want %q/%v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestCandidateValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		wantErr   bool
	}{
		{name: "valid", candidate: Candidate{Title: "Dune", Author: "Herbert"}},
		{name: "missing title", candidate: Candidate{Title: "  ", Author: "Herbert"}, wantErr: true},
		{name: "missing author", candidate: Candidate{Title: "Dune", Author: ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candidate.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
