package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gumball/pkg/domain"
	"gumball/pkg/platform/sentinel"
)

func ident(b byte) domain.Identity {
	var id domain.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestGetToken(t *testing.T) {
	token := ident(7)

	t.Run("returns settings", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/tokens/"+token.String(), r.URL.Path)
			_ = json.NewEncoder(w).Encode(tokenResponse{Decimals: 9})
		}))
		defer srv.Close()

		settings, err := New(srv.URL, "", time.Second).GetToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), settings.Decimals)
	})

	t.Run("404 maps to not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := New(srv.URL, "", time.Second).GetToken(context.Background(), token)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestGetHolding(t *testing.T) {
	account := ident(8)

	t.Run("returns holding", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/accounts/"+account.String(), r.URL.Path)
			_ = json.NewEncoder(w).Encode(holdingResponse{
				Token:   ident(7).String(),
				Owner:   ident(2).String(),
				Balance: 1_000_000,
			})
		}))
		defer srv.Close()

		holding, err := New(srv.URL, "", time.Second).GetHolding(context.Background(), account)
		require.NoError(t, err)
		assert.Equal(t, ident(7), holding.Token)
		assert.Equal(t, ident(2), holding.Owner)
		assert.Equal(t, uint64(1_000_000), holding.Balance)
	})

	t.Run("malformed identities rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(holdingResponse{Token: "junk", Owner: "junk"})
		}))
		defer srv.Close()

		_, err := New(srv.URL, "", time.Second).GetHolding(context.Background(), account)
		assert.ErrorContains(t, err, "malformed")
	})
}

func TestBurn(t *testing.T) {
	token := ident(7)
	account := ident(8)

	t.Run("posts the burn", func(t *testing.T) {
		var got burnRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/tokens/"+token.String()+"/burn", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := New(srv.URL, "", time.Second).Burn(context.Background(), token, account, 1_000_000)
		require.NoError(t, err)
		assert.Equal(t, account.String(), got.Account)
		assert.Equal(t, uint64(1_000_000), got.BaseUnits)
	})

	t.Run("surfaces rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "insufficient balance", http.StatusConflict)
		}))
		defer srv.Close()

		err := New(srv.URL, "", time.Second).Burn(context.Background(), token, account, 1)
		assert.ErrorContains(t, err, "insufficient balance")
	})
}
