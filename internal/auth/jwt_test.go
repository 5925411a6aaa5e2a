package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "seller-1", "shop-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	require.Equal(t, "seller-1", claims.SellerID)
	require.Equal(t, "shop-1", claims.ShopID)
	require.Equal(t, "seller-1", claims.Subject)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", "seller-1", "shop-1", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken("other", token)
	require.Error(t, err)
}

func TestTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", "seller-1", "shop-1", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	require.Error(t, err)
}
