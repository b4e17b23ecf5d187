package utils

import (
	"testing"
)

func TestContainsAny(t *testing.T) {
	keywords := []string{"cancelled", "delayed", "reinstated"}

	tests := []struct {
		name     string
		text     string
		keywords []string
		expected bool
	}{
		{name: "Contains one keyword", text: "bus 3: 10:30am wellington station to lyall bay is cancelled.", keywords: keywords, expected: true},
		{name: "Contains no keywords", text: "bus 3: detour via kent terrace", keywords: keywords, expected: false},
		{name: "Case sensitive", text: "Bus 27 has been REINSTATED", keywords: keywords, expected: false},
		{name: "Partial word match", text: "services are being delayed", keywords: []string{"delay"}, expected: true},
		{name: "Empty keywords", text: "Any text here", keywords: []string{}, expected: false},
		{name: "Empty text", text: "", keywords: keywords, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ContainsAny(tt.text, tt.keywords)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestHasAnyPrefix(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		prefixes []string
		expected bool
	}{
		{name: "Bus prefix", text: "Bus 3: Bus 3: 10:30am", prefixes: []string{"Bus", "School"}, expected: true},
		{name: "Train line code", text: "HVL: 7:05am Upper Hutt", prefixes: []string{"WRL", "KPL", "HVL"}, expected: true},
		{name: "Prefix mid text", text: "Reminder: Bus 3 detour", prefixes: []string{"Bus"}, expected: false},
		{name: "Case sensitive", text: "bus 3: delays", prefixes: []string{"Bus"}, expected: false},
		{name: "Empty prefixes", text: "Bus 3", prefixes: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := HasAnyPrefix(tt.text, tt.prefixes); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func BenchmarkContainsAny(b *testing.B) {
	text := "bus 14: 5:05pm kilbirnie to wilton is running approximately 20 minutes late due to earlier traffic on the route"
	keywords := []string{"cancelled", "delayed", "reinstated", "will run", "part cancelled", "part-cancelled"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ContainsAny(text, keywords)
	}
}

func BenchmarkHasAnyPrefix(b *testing.B) {
	prefixes := []string{"WRL", "KPL", "HVL", "JVL", "MEL", "Trains"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HasAnyPrefix("Trains: all lines running normally", prefixes)
	}
}
