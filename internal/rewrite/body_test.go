package rewrite

import "testing"

func TestBody(t *testing.T) {
	r := New(map[string]string{
		"1013": "T03",
		"1001": "F01",
		"42":   "F99_42",
		"3":    "E02",
	}, nil, nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"prose and file", "See 1013 and 1013.md for details.", "See T03 and T03/spec.md for details."},
		{"context file", "Notes live in 1013.context.md.", "Notes live in T03/context.md."},
		{"longer digit run", "Ticket 10130 and 11013 stay.", "Ticket 10130 and 11013 stay."},
		{"other extension", "Export 1013.json and 1013.yaml.", "Export 1013.json and 1013.yaml."},
		{"mdx is another extension", "Open 1013.mdx", "Open 1013.mdx"},
		{"sentence end", "Depends on 1001.", "Depends on F01."},
		{"no chaining", "1001 then 3", "F01 then E02"},
		{"fallback ids", "orphan 42", "orphan F99_42"},
		{"start and end", "1013", "T03"},
		{"inside word", "v1013x", "v1013x"},
		{"path", "../1001/1013.md", "../F01/T03/spec.md"},
		{"no ids", "nothing to see", "nothing to see"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Body(tt.in); got != tt.want {
				t.Errorf("Body(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBody_NewIDNotRematched(t *testing.T) {
	// T03 is itself an old id here; a substituted T03 must not become T09.
	r := New(map[string]string{"1013": "T03", "T03": "T09"}, nil, nil)

	got := r.Body("1013 and T03")
	if got != "T03 and T09" {
		t.Errorf("Body() = %q, want %q", got, "T03 and T09")
	}
}

func TestBody_EmptyMapping(t *testing.T) {
	r := New(nil, nil, nil)
	if got := r.Body("1013.md"); got != "1013.md" {
		t.Errorf("Body() = %q, want unchanged", got)
	}
}
