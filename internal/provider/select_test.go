package provider_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/config"
	"github.com/popeskul/gathering-dispatch/internal/provider"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.Config
		expectedName string
		expectedErr  error
	}{
		{
			name: "primary when keys present",
			cfg: config.Config{
				Provider: config.ProviderConfig{PublicKey: "p", SecretKey: "s", SendTimeout: 30, StatusTimeout: 5},
				Fallback: config.FallbackConfig{AccountSID: "AC", AuthToken: "t", FromNumber: "+1"},
			},
			expectedName: "pushr",
		},
		{
			name: "fallback without primary keys",
			cfg: config.Config{
				Provider: config.ProviderConfig{PublicKey: "p", SendTimeout: 30, StatusTimeout: 5},
				Fallback: config.FallbackConfig{AccountSID: "AC", AuthToken: "t", FromNumber: "+1"},
			},
			expectedName: "gateway",
		},
		{
			name:        "nothing configured",
			cfg:         config.Config{},
			expectedErr: provider.ErrNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := provider.Select(&tt.cfg, zap.NewNop())
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr))
				assert.Nil(t, sender)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, sender.Name())
		})
	}
}
