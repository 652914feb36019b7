package db

import (
	"testing"

	"greybackend/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AuditConfig
		want string
	}{
		{
			name: "defaults to sslmode disable",
			cfg:  config.AuditConfig{User: "grey", Password: "pw", Host: "db", Port: 5432, Name: "audit"},
			want: "postgres://grey:pw@db:5432/audit?sslmode=disable",
		},
		{
			name: "escapes reserved characters in password",
			cfg:  config.AuditConfig{User: "grey", Password: "p@ss/w:rd", Host: "db", Port: 5433, Name: "audit", SSLMode: "require"},
			want: "postgres://grey:p%40ss%2Fw%3Ard@db:5433/audit?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Fatalf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	for tag, want := range map[string]string{
		"INSERT 0 1": "INSERT",
		"SELECT 50":  "SELECT",
		"BEGIN":      "BEGIN",
		"":           "unknown",
	} {
		if got := commandName(tag); got != want {
			t.Errorf("commandName(%q) = %q, want %q", tag, got, want)
		}
	}
}
