package visitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"v1/FooBar", "v1/foo/bar"},
		{"v1/foo", "v1/foo"},
		{"APIKeys", "api/keys"},
		{"V1", "v1"},
		{"v1Orders", "v1/orders"},
		{"user_id", "user/id"},
		{"HTMLParser", "html/parser"},
		{"orders/Get", "orders/get"},
		{"Orders2", "orders2"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, pathCase(tt.in))
		})
	}
}
