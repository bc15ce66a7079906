package environment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/ssokit/pkg/environment"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := map[string]environment.Environment{
		"production":  environment.Production,
		" PROD ":      environment.Production,
		"stage":       environment.Staging,
		"staging":     environment.Staging,
		"development": environment.Development,
		"":            environment.Development,
		"qa":          environment.Development,
	}
	for in, want := range tests {
		assert.Equal(t, want, environment.Parse(in), in)
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, environment.Development.IsDevelopment())
	assert.True(t, environment.Environment("").IsDevelopment())
	assert.False(t, environment.Production.IsDevelopment())
	assert.True(t, environment.Production.IsProduction())
	assert.False(t, environment.Staging.IsProduction())
	assert.Equal(t, "development", environment.Environment("").String())
}
