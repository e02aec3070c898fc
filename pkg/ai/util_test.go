package ai

import "testing"

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestUnmarshalFlexible_StandardJSON(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`{"name": "a", "count": 2}`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "a" || out.Count != 2 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`"{\"name\": \"b\", \"count\": 3}"`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "b" || out.Count != 3 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_MalformedRepaired(t *testing.T) {
	var out sample
	if err := UnmarshalFlexible(`{name: "c", count: 4,}`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "c" || out.Count != 4 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_CodeFenced(t *testing.T) {
	var out sample
	fenced := "```json\n{\"name\": \"d\", \"count\": 5}\n```"
	if err := UnmarshalFlexible(fenced, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "d" || out.Count != 5 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &ProviderError{Provider: "openai", Status: 429}, true},
		{"server error", &ProviderError{Provider: "openai", Status: 503}, true},
		{"bad request", &ProviderError{Provider: "openai", Status: 400}, false},
		{"unauthorized", &ProviderError{Provider: "openai", Status: 401}, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable = %v, want %v", got, tc.want)
			}
		})
	}
}
