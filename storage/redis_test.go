package storage

import "testing"

func TestParseRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		addr     string
		password string
		tls      bool
		wantErr  bool
	}{
		{name: "url", conn: "redis://:pw@localhost:6380/0", addr: "localhost:6380", password: "pw"},
		{name: "azure", conn: "cache.example.net:6380,password=secret=,ssl=True,abortConnect=False", addr: "cache.example.net:6380", password: "secret=", tls: true},
		{name: "plain", conn: "localhost:6379", addr: "localhost:6379"},
		{name: "empty", conn: " ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseRedisOptions(tt.conn)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if opts.Addr != tt.addr || opts.Password != tt.password || (opts.TLSConfig != nil) != tt.tls {
				t.Fatalf("unexpected options %+v", opts)
			}
		})
	}
}
