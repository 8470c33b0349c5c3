package registry

import (
	"errors"
	"testing"
)

func TestNormalizeSubdomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "www", want: "www"},
		{in: "API", want: "api"},
		{in: "a.b", want: "a.b"},
		{in: "_acme-challenge", want: "_acme-challenge"},
		{in: "café", want: "xn--caf-dma"},
		{in: "", wantErr: true},
		{in: "has space", wantErr: true},
		{in: "-lead", wantErr: true},
		{in: "a..b", wantErr: true},
		{in: "toolonglabel-toolonglabel-toolonglabel-toolonglabel-toolonglabel", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeSubdomain(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDomain) {
				t.Errorf("NormalizeSubdomain(%q): expected ErrInvalidDomain, got %q, %v", tt.in, got, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeSubdomain(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeSubdomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinFQDN(t *testing.T) {
	if fqdn := JoinFQDN("www", "example.com"); fqdn != "www.example.com" {
		t.Fatalf("unexpected fqdn %s", fqdn)
	}
}
