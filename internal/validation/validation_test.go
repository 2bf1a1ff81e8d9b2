package validation

import "testing"

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", "hello", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"valid with spaces", " x ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired("field", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequired(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMaxLength(t *testing.T) {
	if err := ValidateMaxLength("field", "abc", 3); err != nil {
		t.Errorf("Expected no error at the limit, got %v", err)
	}
	if err := ValidateMaxLength("field", "abcd", 3); err == nil {
		t.Error("Expected error past the limit")
	}
	// Rune count, not byte count
	if err := ValidateMaxLength("field", "日本語", 3); err != nil {
		t.Errorf("Expected rune-based length check, got %v", err)
	}
}

func TestValidateEnum(t *testing.T) {
	allowed := []string{"positive", "negative"}
	if err := ValidateEnum("type", "positive", allowed); err != nil {
		t.Errorf("Expected no error for allowed value, got %v", err)
	}
	if err := ValidateEnum("type", "bogus", allowed); err == nil {
		t.Error("Expected error for disallowed value")
	}
}

func TestValidateNonNegative(t *testing.T) {
	if err := ValidateNonNegative("targetValue", 0); err != nil {
		t.Errorf("Expected zero allowed, got %v", err)
	}
	if err := ValidateNonNegative("targetValue", -1); err == nil {
		t.Error("Expected error for negative value")
	}
}

func TestValidateULID(t *testing.T) {
	if err := ValidateULID("id", "01ARZ3NDEKTSV4RRFFQ69G5FAV"); err != nil {
		t.Errorf("Expected valid ULID accepted, got %v", err)
	}
	if err := ValidateULID("id", "short"); err == nil {
		t.Error("Expected error for wrong length")
	}
	if err := ValidateULID("id", "01ARZ3NDEKTSV4RRFFQ69G5FAU"); err == nil {
		t.Error("Expected error for excluded character U")
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	if c.HasErrors() {
		t.Error("Expected empty collector")
	}

	c.Add(nil)
	if c.HasErrors() {
		t.Error("Expected nil add to be ignored")
	}

	c.Add(ValidateRequired("a", ""))
	c.Add(ValidateRequired("b", ""))
	if !c.HasErrors() || len(c.Errors()) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(c.Errors()))
	}
}
