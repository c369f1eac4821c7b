package utils

import "testing"

func TestMatchesPermission(t *testing.T) {
	tests := []struct {
		name     string
		granted  string
		required string
		expected bool
	}{
		// Exact matches
		{"exact match", "client:create", "client:create", true},
		{"different action", "client:create", "client:list", false},
		{"different resource", "client:create", "vehicle:create", false},
		{"dotted resource exact", "service.active:update", "service.active:update", true},
		{"dotted resource differs", "service.active:update", "service.completed:update", false},

		// Full wildcard
		{"full wildcard *:*:*", "*:*:*", "client:create", true},
		{"full wildcard *", "*", "anything:goes", true},
		{"full wildcard *:*", "*:*", "service.active:delete", true},

		// Resource wildcard
		{"resource wildcard create", "service.active:*", "service.active:create", true},
		{"resource wildcard list", "service.active:*", "service.active:list", true},
		{"resource wildcard other resource", "service.active:*", "service.completed:list", false},

		// Action wildcard
		{"action wildcard client", "*:list", "client:list", true},
		{"action wildcard inventory", "*:list", "inventory:list", true},
		{"action wildcard other action", "*:list", "client:delete", false},

		// Edge cases
		{"empty required", "client:create", "", false},
		{"empty granted", "", "client:create", false},
		{"both empty", "", "", true},
		{"single part exact", "admin", "admin", true},
		{"single part vs multi-part", "admin", "admin:list", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchesPermission(tt.granted, tt.required)
			if result != tt.expected {
				t.Errorf("MatchesPermission(%q, %q) = %v, expected %v",
					tt.granted, tt.required, result, tt.expected)
			}
		})
	}
}

func TestHasAllPermissions_RoleScenarios(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		granted  []string
		required []string
		expected bool
	}{
		{
			name:     "admin has everything",
			role:     "admin",
			granted:  []string{"*:*"},
			required: []string{"service.active:create", "user:delete"},
			expected: true,
		},
		{
			name:     "reception creates and lists jobs",
			role:     "recepcion",
			granted:  []string{"service.active:create", "service.active:list", "client:*"},
			required: []string{"service.active:create", "service.active:list"},
			expected: true,
		},
		{
			name:     "mechanic cannot delete jobs",
			role:     "mecanico",
			granted:  []string{"service.active:list", "service.active:update"},
			required: []string{"service.active:delete"},
			expected: false,
		},
		{
			name:     "all required must match",
			role:     "almacen",
			granted:  []string{"inventory:*"},
			required: []string{"inventory:update", "service.active:list"},
			expected: false,
		},
		{
			name:     "nothing required",
			role:     "guest",
			granted:  nil,
			required: nil,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasAllPermissions(tt.granted, tt.required)
			if got != tt.expected {
				t.Errorf("role %q with %v: expected %v for %v, got %v",
					tt.role, tt.granted, tt.expected, tt.required, got)
			}
		})
	}
}

func BenchmarkMatchesPermission_ExactMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("client:create", "client:create")
	}
}

func BenchmarkMatchesPermission_ResourceWildcard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("service.active:*", "service.active:update")
	}
}

func BenchmarkMatchesPermission_NoMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		MatchesPermission("client:create", "user:delete")
	}
}
