package protocol

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  string
		found bool
	}{
		{
			name:  "bare object",
			line:  `{"jsonrpc":"2.0","id":1}`,
			want:  `{"jsonrpc":"2.0","id":1}`,
			found: true,
		},
		{
			name:  "chatter before frame",
			line:  `Connecting to server... {"jsonrpc":"2.0","id":2,"result":{}}`,
			want:  `{"jsonrpc":"2.0","id":2,"result":{}}`,
			found: true,
		},
		{
			name:  "trailing chatter dropped",
			line:  `{"id":3} done`,
			want:  `{"id":3}`,
			found: true,
		},
		{
			name:  "nested objects and arrays",
			line:  `{"result":{"content":[{"type":"text","text":"hi"}]}}`,
			want:  `{"result":{"content":[{"type":"text","text":"hi"}]}}`,
			found: true,
		},
		{
			name:  "braces inside strings",
			line:  `{"msg":"use {curly} and [square]"}`,
			want:  `{"msg":"use {curly} and [square]"}`,
			found: true,
		},
		{
			name:  "escaped quote inside string",
			line:  `{"msg":"she said \"hi}\" loudly"}`,
			want:  `{"msg":"she said \"hi}\" loudly"}`,
			found: true,
		},
		{
			name:  "escaped backslash before closing quote",
			line:  `{"path":"C:\\temp\\"}`,
			want:  `{"path":"C:\\temp\\"}`,
			found: true,
		},
		{
			name:  "array value",
			line:  `log: [1,2,3] trailing`,
			want:  `[1,2,3]`,
			found: true,
		},
		{
			name:  "pure chatter",
			line:  `Server ready on port 8080`,
			found: false,
		},
		{
			name:  "unbalanced frame",
			line:  `{"jsonrpc":"2.0","id":4`,
			found: false,
		},
		{
			name:  "empty line",
			line:  "",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractJSON(tt.line)
			if found != tt.found {
				t.Fatalf("found = %t, want %t", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
