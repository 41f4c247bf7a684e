package main

import (
	"net"
	"testing"

	"github.com/hazyhaar/composer/host"
	"github.com/hazyhaar/composer/internal/config"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		addr net.Addr
		want string
	}{
		{&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8095}, "http://127.0.0.1:8095"},
		{&net.TCPAddr{IP: net.IPv4zero, Port: 9000}, "http://127.0.0.1:9000"},
		{&net.TCPAddr{IP: net.IPv6unspecified, Port: 9001}, "http://127.0.0.1:9001"},
		{&net.TCPAddr{IP: net.ParseIP("192.168.1.5"), Port: 80}, "http://192.168.1.5:80"},
	}
	for _, tt := range tests {
		if got := baseURL(tt.addr); got != tt.want {
			t.Errorf("baseURL(%v): got %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestPropsFrom(t *testing.T) {
	cfg, err := config.Parse([]byte(`
mode: headless
editor:
  default_value: "<p>Hi</p>"
  placeholder: "Write..."
  dark_mode: true
  style:
    color: red
`), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, err := propsFrom(cfg)
	if err != nil {
		t.Fatalf("propsFrom: %v", err)
	}
	if p.DefaultValue != "<p>Hi</p>" || p.Placeholder != "Write..." || !p.DarkMode || p.Style["color"] != "red" {
		t.Fatalf("props: got %+v", p)
	}
}

func TestReloadProps(t *testing.T) {
	next, err := config.Parse([]byte(`
mode: headless
editor:
  default_value: "<p>Hello</p>"
  placeholder: "Changed"
`), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cur := host.Props{DefaultValue: "<p>restored draft</p>", Placeholder: "Write..."}

	p, err := reloadProps(cur, next, true)
	if err != nil {
		t.Fatalf("reloadProps: %v", err)
	}
	if p.DefaultValue != cur.DefaultValue {
		t.Errorf("with drafts: DefaultValue got %q, want %q", p.DefaultValue, cur.DefaultValue)
	}
	if p.Placeholder != "Changed" {
		t.Errorf("with drafts: Placeholder got %q", p.Placeholder)
	}

	p, err = reloadProps(cur, next, false)
	if err != nil {
		t.Fatalf("reloadProps: %v", err)
	}
	if p.DefaultValue != "<p>Hello</p>" {
		t.Errorf("without drafts: DefaultValue got %q", p.DefaultValue)
	}
}
