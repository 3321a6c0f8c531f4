package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"separate value", []string{"-a", ":8080", "-x", "1"}, []string{"-a"}, []string{"-a", ":8080"}},
		{"joined value", []string{"-a=:8080", "-x=1"}, []string{"-a"}, []string{"-a=:8080"}},
		{"flag without value", []string{"-a", "-b", "v"}, []string{"-a", "-b"}, []string{"-a", "-b", "v"}},
		{"nothing allowed", []string{"-a", "1"}, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlag(t *testing.T) {
	assert.Equal(t, "conf.json", JsonConfigFlag([]string{"-a", ":1", "-c", "conf.json"}))
	assert.Equal(t, "other.json", JsonConfigFlag([]string{"-config=other.json"}))
	assert.Equal(t, "", JsonConfigFlag([]string{"-a", ":1"}))
}
